package privacy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses bursts of write events into one reload. Editors
// and the engine daemon both write via temp-file + rename, which fsnotify
// reports as several events.
const reloadDebounce = 250 * time.Millisecond

// Watch keeps the filter in sync with its persistence file until ctx is
// done. The engine daemon owns the file and may rewrite it at any time; the
// filter must never drift from the durable blacklist, so external changes
// are folded into the in-memory snapshot as they land.
func (f *Filter) Watch(ctx context.Context) error {
	if f.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory, not the file: renames replace the inode.
	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := f.Reload(); err != nil {
				fmt.Fprintf(os.Stderr, "cce: blacklist reload failed: %v\n", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "cce: blacklist watcher: %v\n", err)
		}
	}
}
