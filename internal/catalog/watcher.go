package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls onChange after pattern files in a directory change.
// Bursts of events are coalesced by a debounce window.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("no directory configured for watching")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		watcher:  fw,
		onChange: onChange,
		debounce: 250 * time.Millisecond,
		logger:   logger,
	}, nil
}

// Run processes events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPatternFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("pattern file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("pattern watcher error", "dir", w.dir, "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
