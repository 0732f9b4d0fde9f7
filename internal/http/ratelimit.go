package http

import (
	"sync"
	"time"
)

// Write requests are throttled per client IP. The UI polls reads freely,
// so only mutating methods count against the budget (see middleware.go).
const (
	writeBudget     = 120
	budgetWindow    = time.Minute
	cleanupInterval = 5 * time.Minute
	staleAfter      = 10 * time.Minute
)

type rateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*requestWindow
	done     chan struct{}
	stopOnce sync.Once
}

// requestWindow counts requests inside the current budget window.
type requestWindow struct {
	start time.Time
	count int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		windows: make(map[string]*requestWindow),
		done:    make(chan struct{}),
	}
	go rl.reapLoop()
	return rl
}

// allow records a request for the client and reports whether it fits
// inside the per-window budget.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[clientIP]
	if !ok || now.Sub(w.start) > budgetWindow {
		rl.windows[clientIP] = &requestWindow{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= writeBudget
}

// reapLoop drops windows for clients that have gone quiet.
func (rl *rateLimiter) reapLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-staleAfter)
			rl.mu.Lock()
			for ip, w := range rl.windows {
				if w.start.Before(cutoff) {
					delete(rl.windows, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}
