package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change in a burst
// before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the catalog from dir whenever a table file in it changes
// and passes each successfully loaded catalog to onLoad. A reload that fails
// is logged and otherwise ignored, so the caller keeps its previous catalog.
//
// Watch blocks until ctx is done. It returns an error only if dir cannot be
// watched.
func Watch(ctx context.Context, dir string, logger *slog.Logger, onLoad func(*Catalog)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", dir, err)
	}

	timer := time.NewTimer(DefaultDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".json" || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(DefaultDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watch", "dir", dir, "err", err)
		case <-timer.C:
			c, err := Load(os.DirFS(dir))
			if err != nil {
				logger.Warn("catalog reload failed", "dir", dir, "err", err)
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Info("catalog reloaded", "dir", dir)
			onLoad(c)
		}
	}
}
