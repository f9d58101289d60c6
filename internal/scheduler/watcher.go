package scheduler

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// fileWatcher watches the parent directory so the watch survives editors
// that replace the file instead of writing in place.
type fileWatcher struct {
	path string
	w    *fsnotify.Watcher
}

func newFileWatcher(path string) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &fileWatcher{path: abs, w: w}, nil
}

func (fw *fileWatcher) run(ctx context.Context, onChange func(), logger *zap.Logger) {
	defer fw.w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				logger.Debug("csv change observed", zap.String("op", ev.Op.String()))
				onChange()
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			logger.Warn("csv watch error", zap.Error(err))
		}
	}
}
