package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ModelWatcher marks sessions stale when the model file changes on disk.
type ModelWatcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	file     string
	debounce time.Duration
	logger   *zap.Logger
}

// NewModelWatcher watches the directory holding modelPath. Watching the
// directory rather than the file survives editors and copy tools that
// replace the file by rename.
func NewModelWatcher(store *Store, modelPath string, logger *zap.Logger) (*ModelWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(modelPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}
	return &ModelWatcher{
		store:    store,
		watcher:  fsw,
		file:     filepath.Base(modelPath),
		debounce: 250 * time.Millisecond,
		logger:   logger,
	}, nil
}

// Run processes filesystem events until ctx is cancelled. Bursts of events
// for the model file are coalesced into a single MarkStale.
func (w *ModelWatcher) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			pending = true
			timer.Reset(w.debounce)

		case <-timer.C:
			pending = false
			n := w.store.MarkStale()
			w.logger.Info("model file changed",
				zap.String("file", w.file),
				zap.Int("stale_sessions", n),
			)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("model watcher error", zap.Error(err))
		}
	}
}

// Close stops watching.
func (w *ModelWatcher) Close() error {
	return w.watcher.Close()
}

func (w *ModelWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != w.file {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
