package source

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch signals (coalesced over the debounce window) when a supported file is
// created, written or renamed in the inbox. The channel closes when ctx ends.
func (s *LocalSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, err
	}
	if err := w.Add(s.inbox); err != nil {
		_ = w.Close()
		s.logger.Error("failed to watch inbox", "inbox", s.inbox, "error", err)
		return nil, err
	}

	out := make(chan struct{}, 1)
	notify := func() {
		select {
		case out <- struct{}{}:
		default:
		}
	}

	go func() {
		defer close(out)
		defer func() {
			if err := w.Close(); err != nil {
				s.logger.Warn("watcher close error", "error", err)
			}
		}()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if IsHidden(e.Name) || !AllowedExt(filepath.Ext(e.Name)) {
					continue
				}
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Rename) {
					continue
				}
				if s.debounce <= 0 {
					notify()
					continue
				}
				if timer == nil {
					timer = time.NewTimer(s.debounce)
				} else {
					timer.Reset(s.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				notify()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Error("watcher error", "error", err)
			}
		}
	}()
	return out, nil
}
