package server

import (
	"context"
	"log/slog"

	"github.com/vmunix/arrdash/internal/events"
)

// Subscriber is the subscribe side of the event bus. Implemented by *events.Bus.
type Subscriber interface {
	Subscribe(eventType string, bufferSize int) <-chan events.Event
	Unsubscribe(ch <-chan events.Event)
}

// backendWatcher logs every availability change the poller publishes.
type backendWatcher struct {
	bus  Subscriber
	down <-chan events.Event
	up   <-chan events.Event
	log  *slog.Logger
}

// newBackendWatcher subscribes immediately so no transition published after
// it returns is missed.
func newBackendWatcher(bus Subscriber, log *slog.Logger) *backendWatcher {
	return &backendWatcher{
		bus:  bus,
		down: bus.Subscribe(events.EventBackendDown, 16),
		up:   bus.Subscribe(events.EventBackendRecovered, 16),
		log:  log.With("component", "watch"),
	}
}

// run logs until ctx is done or the bus closes.
func (w *backendWatcher) run(ctx context.Context) {
	defer w.bus.Unsubscribe(w.down)
	defer w.bus.Unsubscribe(w.up)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.down:
			if !ok {
				return
			}
			if ev, ok := e.(*events.BackendDown); ok {
				w.log.Warn("service down", "kind", ev.Kind, "error", ev.Error)
			}
		case e, ok := <-w.up:
			if !ok {
				return
			}
			if ev, ok := e.(*events.BackendRecovered); ok {
				w.log.Info("service recovered", "kind", ev.Kind, "version", ev.Version, "downtime", ev.Downtime)
			}
		}
	}
}
