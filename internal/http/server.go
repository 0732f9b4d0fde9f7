// Package http serves the JSON API and the embedded web UI.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"caretrack/internal/cache"
	"caretrack/internal/core"
	applog "caretrack/internal/log"
	"caretrack/internal/report"
	"caretrack/internal/services"
	"caretrack/internal/storage"
	appweb "caretrack/web"
)

type Server struct {
	http.Server

	registry *services.RegistryService
	tracking *services.TrackingService
	store    storage.Store
	reports  *report.Renderer

	rateLimiter *rateLimiter
	structured  *applog.StructuredLogger

	// Summary rows are recomputed from every entry of the month, so
	// reads are cached and every write purges.
	summaryCache *cache.LRUCache[[]core.Summary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and the embedded UI, returning a
// ready-to-run server.
func NewServer(addr string, registry *services.RegistryService, tracking *services.TrackingService, store storage.Store, logger *applog.Logger) (*Server, error) {
	mux := http.NewServeMux()

	reports, err := report.NewRenderer()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		registry:     registry,
		tracking:     tracking,
		store:        store,
		reports:      reports,
		rateLimiter:  newRateLimiter(),
		structured:   applog.NewStructuredLogger(logger),
		summaryCache: cache.NewLRUCache[[]core.Summary](24, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("GET /{$}", s.wrap(s.handleIndex))
	mux.HandleFunc("GET /api/health", s.wrap(s.handleHealth))

	mux.HandleFunc("GET /api/caregivers", s.wrap(s.handleListCaregivers))
	mux.HandleFunc("POST /api/caregivers", s.wrap(s.handleCreateCaregiver))
	mux.HandleFunc("GET /api/caregivers/{id}", s.wrap(s.handleGetCaregiver))
	mux.HandleFunc("PUT /api/caregivers/{id}", s.wrap(s.handleUpdateCaregiver))
	mux.HandleFunc("DELETE /api/caregivers/{id}", s.wrap(s.handleDeleteCaregiver))
	mux.HandleFunc("GET /api/caregivers/{id}/current-entry", s.wrap(s.handleCurrentEntry))
	mux.HandleFunc("GET /api/caregivers/{id}/time-entries", s.wrap(s.handleListCaregiverEntries))

	mux.HandleFunc("GET /api/time-entries", s.wrap(s.handleListEntries))
	mux.HandleFunc("POST /api/time-entries", s.wrap(s.handleCreateEntry))
	mux.HandleFunc("PATCH /api/time-entries/{id}/clock-out", s.wrap(s.handleClockOut))
	mux.HandleFunc("PUT /api/time-entries/{id}", s.wrap(s.handleUpdateEntry))
	mux.HandleFunc("DELETE /api/time-entries/{id}", s.wrap(s.handleDeleteEntry))

	mux.HandleFunc("GET /api/summary/{month}", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /api/report/{month}", s.wrap(s.handleReport))

	mux.HandleFunc("GET /api/export", s.wrap(s.handleExport))
	mux.HandleFunc("POST /api/import", s.wrap(s.handleImport))

	return s, nil
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := appweb.StaticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "UI not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) invalidateSummaries() {
	s.summaryCache.Purge()
}

func (s *Server) cachedSummary(ctx context.Context, month core.Month) ([]core.Summary, error) {
	key := month.String()
	if rows, found := s.summaryCache.Get(key); found {
		return rows, nil
	}

	rows, err := s.registry.MonthlySummary(ctx, month)
	if err != nil {
		return nil, err
	}
	s.summaryCache.Set(key, rows)
	return rows, nil
}
