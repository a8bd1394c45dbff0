// Package watcher triggers a callback when a single file changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"pdfrag/internal/logger"
)

// Watch blocks until ctx is done, calling fn after path has been written or
// created. A file renamed into place arrives as Create; a Rename on path
// means it moved away and is ignored. Bursts of events within debounce collapse
// into one call. The parent directory is watched so editors that replace the
// file atomically are still seen. Errors from fn are logged, not returned.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	log := logger.WithComponent("watcher").With("path", abs)
	log.Info("watching for changes")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, abs) {
				continue
			}
			log.Debug("file event", "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		case <-timer.C:
			if err := fn(); err != nil {
				log.Error("reload failed", "error", err)
			}
		}
	}
}

func relevant(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
