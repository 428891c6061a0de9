package prompts

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it is written or recreated until ctx is done.
// A file that fails to load is logged and the previous templates stay active.
func (b *Builder) Watch(ctx context.Context, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("prompts: resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("prompts: create watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("prompts: watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := b.Load(target); err != nil {
					logger.Warn("prompts: reload failed, keeping previous templates", zap.String("path", target), zap.Error(err))
					continue
				}
				logger.Info("prompts: templates reloaded", zap.String("path", target))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("prompts: watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
