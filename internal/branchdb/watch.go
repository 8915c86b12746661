package branchdb

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers a debounced BranchDB.Rescan whenever the content root
// gains or loses an account or repo directory. It is grounded on the
// teacher pack's fsnotify-based config watcher (inful-docbuilder's
// ConfigWatcher), generalized from "watch one file, reload config" to
// "watch a tree two levels deep, rescan the branch directory".
type Watcher struct {
	db       *BranchDB
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher creates a Watcher over db's content root. Callers must call
// Start to begin watching and Close to release the underlying fsnotify
// watcher.
func NewWatcher(db *BranchDB, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{db: db, watcher: fw, debounce: debounce}, nil
}

// Start watches the content root (and every account directory currently
// under it, so new repo checkouts are seen) and rescans on change,
// logging but not returning per-event errors; a watch failure on one
// directory shouldn't prevent the rest from working.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.db.root); err != nil {
		return err
	}
	w.db.mu.RLock()
	seen := map[string]bool{}
	for _, r := range w.db.repos {
		dir := filepath.Dir(r.RepoPath)
		if !seen[dir] {
			seen[dir] = true
			_ = w.watcher.Add(dir)
		}
	}
	w.db.mu.RUnlock()

	go w.loop(ctx)
	return nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.watcher.Close() }

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	trigger := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("branchdb: watch error", "error", err)
		case <-pending:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if err := w.db.Rescan(); err != nil {
					slog.Error("branchdb: rescan failed", "error", err)
				}
			})
		}
	}
}
