// Package watch triggers rebuilds when the input file's content changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/pathgraph/internal/checksum"
)

// RebuildFunc runs one build after a content change.
type RebuildFunc func(ctx context.Context) error

// Watch watches the directory holding path and calls rebuild once the file
// settles for debounce with a checksum different from the last one seen.
// Editors that save by rename or recreate are handled since the directory,
// not the file, is watched. Watch returns when ctx is cancelled.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, rebuild RebuildFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(abs), err)
	}

	last, err := checksum.File(abs)
	if err != nil {
		logger.Warn("watcher: initial checksum failed", slog.String("path", abs), slog.String("error", err.Error()))
	}
	logger.Info("watcher: started", slog.String("path", abs), slog.Duration("debounce", debounce))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			sum, err := checksum.File(abs)
			if err != nil {
				logger.Debug("watcher: input not readable", slog.String("path", abs), slog.String("error", err.Error()))
				continue
			}
			if sum == last {
				logger.Debug("watcher: content unchanged", slog.String("path", abs))
				continue
			}
			last = sum
			logger.Info("watcher: input changed", slog.String("path", abs), slog.String("checksum", sum))
			if err := rebuild(ctx); err != nil {
				logger.Error("watcher: rebuild failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				logger.Info("watcher: input moved away", slog.String("path", abs), slog.String("op", ev.Op.String()))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
