package fixture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of editor writes into one reload.
const DefaultDebounce = 150 * time.Millisecond

// Watch signals on the returned channel whenever the fixture file changes
// on disk through something other than this store. The channel closes when
// ctx is done. Callers should drain it; signals are dropped while one is
// already pending.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	if s.path == "" {
		return nil, errors.New("fixture: watch needs a file path")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fixture: create watcher: %w", err)
	}
	// editors replace files by rename, so watch the directory
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("fixture: watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != target {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if !s.changedOnDisk() {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
