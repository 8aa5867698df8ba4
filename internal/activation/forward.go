package activation

import (
	"context"

	"github.com/commons-systems/pdfmerger/internal/debug"
	"github.com/commons-systems/pdfmerger/internal/watcher"
)

// Receiver takes delivered paths. *Dispatcher implements it.
type Receiver interface {
	Deliver(paths []string)
}

// ForwardSpool consumes every spool file announced on events and hands its
// paths to r. It returns when ctx ends or events is closed.
func ForwardSpool(ctx context.Context, s *Spool, events <-chan watcher.SpoolEvent, r Receiver) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Error != nil {
				debug.Log("SPOOL_WATCH_ERROR error=%v", ev.Error)
				continue
			}
			paths, err := s.Consume(ev.Path)
			if err != nil {
				debug.Log("SPOOL_CONSUME_ERROR file=%s error=%v", ev.Path, err)
			}
			if len(paths) > 0 {
				r.Deliver(paths)
			}
		}
	}
}
