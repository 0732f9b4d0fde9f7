package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"caretrack/internal/storage"
)

// Worker writes a timestamped snapshot file on a fixed interval and
// prunes old ones. Failures are logged and retried on the next tick, a
// missed backup never takes the app down.
type Worker struct {
	store    storage.Store
	dir      string
	interval time.Duration
	keep     int
}

func NewWorker(store storage.Store, dir string, interval time.Duration, keep int) *Worker {
	return &Worker{
		store:    store,
		dir:      dir,
		interval: interval,
		keep:     keep,
	}
}

// Run takes a snapshot immediately, then on every tick until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	slog.InfoContext(ctx, "Backup worker started",
		"dir", w.dir, "interval", w.interval, "keep", w.keep)

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Backup worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	path, err := w.WriteSnapshot(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Backup failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Backup written", "path", path)

	if err := w.prune(); err != nil {
		slog.WarnContext(ctx, "Backup pruning failed", "error", err)
	}
}

// WriteSnapshot exports the dataset to a new timestamped file and
// returns its path.
func (w *Worker) WriteSnapshot(ctx context.Context) (string, error) {
	snap, err := Export(ctx, w.store)
	if err != nil {
		return "", fmt.Errorf("export snapshot: %w", err)
	}

	data, err := snap.Encode()
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := fmt.Sprintf("caretrack-%s.json", snap.Timestamp.Format("20060102-150405"))
	path := filepath.Join(w.dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize snapshot file: %w", err)
	}

	return path, nil
}

// prune deletes the oldest snapshot files beyond the keep count.
func (w *Worker) prune() error {
	if w.keep < 1 {
		return nil
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "caretrack-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}

	if len(names) <= w.keep {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-w.keep] {
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil {
			return err
		}
	}
	return nil
}
