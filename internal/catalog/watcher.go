package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/metrics"
)

// reloadDelay is how long after the last write event the watcher waits
// before reloading. Editors often emit several events per save.
const reloadDelay = 200 * time.Millisecond

// Watcher hot-reloads the catalog file into a Holder. A reload that fails
// validation keeps the previous catalog serving and logs the error.
type Watcher struct {
	path   string
	holder *Holder
	fw     *fsnotify.Watcher
}

// NewWatcher starts watching the catalog file at path. Call Run to process
// events.
func NewWatcher(path string, holder *Holder) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("catalog: watch %s: %w", path, err)
	}
	return &Watcher{path: path, holder: holder, fw: fw}, nil
}

// Run processes file events until ctx is done. Reloads are debounced so a
// burst of writes from one save triggers a single reload.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(reloadDelay, w.reload)
			} else {
				debounce.Reset(reloadDelay)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Error("catalog watch error", "path", w.path, "err", err)
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		slog.Error("catalog reload failed, keeping previous catalog",
			"path", w.path, "err", err)
		return
	}
	w.holder.Swap(c)
	metrics.CatalogReloads.Inc()
	slog.Info("catalog reloaded", "path", w.path, "pools", len(c.Names()))
}
