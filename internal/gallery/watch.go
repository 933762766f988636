package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"lwectl/internal/logging"
)

// Watch calls onChange whenever items under root appear, disappear or change
// their preview, coalescing bursts within debounce. It blocks until ctx ends.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	logger = logging.NewComponentLogger(logger, "gallery")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	addItemDirs(watcher, root)

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create && filepath.Dir(event.Name) == filepath.Clean(root) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			logger.Debug("media root changed", logging.String("path", event.Name), logging.String("op", event.Op.String()))
			timer.Reset(debounce)
		case <-timer.C:
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			logging.WarnWithContext(logger, "media watcher error", "gallery_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "listing may be stale until the next change"),
			)
		}
	}
}

func addItemDirs(watcher *fsnotify.Watcher, root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() && entry.Name()[0] != '.' {
			// Item directories that vanish mid-scan are picked up by the root watch.
			_ = watcher.Add(filepath.Join(root, entry.Name()))
		}
	}
}
