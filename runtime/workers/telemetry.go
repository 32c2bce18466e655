package workers

import (
	"budget-grid/domain/event"
	"context"
	"log/slog"
	"sync/atomic"
)

// TelemetryWorker fans technical events out to handlers.
// Events still buffered when the context ends are delivered before Run returns,
// so a final SpendStopped is never lost on shutdown.
type TelemetryWorker struct {
	log      *slog.Logger
	events   <-chan event.Event
	handlers []event.Handler
	handled  atomic.Uint64
}

func NewTelemetryWorker(log *slog.Logger, events chan event.Event, handlers []event.Handler) *TelemetryWorker {
	return &TelemetryWorker{log: log, events: events, handlers: handlers}
}

func (w *TelemetryWorker) Name() string { return "telemetry" }

// Handled is the number of events dispatched so far.
func (w *TelemetryWorker) Handled() uint64 { return w.handled.Load() }

func (w *TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Telemetry stopped", "handled", w.Handled())
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.dispatch(evt)
		}
	}
}

func (w *TelemetryWorker) drain() {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				return
			}
			w.dispatch(evt)
		default:
			return
		}
	}
}

func (w *TelemetryWorker) dispatch(evt event.Event) {
	for _, h := range w.handlers {
		w.safeHandle(h, evt)
	}
	w.handled.Add(1)
}

// A faulty handler must not take the other handlers down with it.
func (w *TelemetryWorker) safeHandle(h event.Handler, evt event.Event) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Telemetry handler panicked", "type", evt.Type, "panic", r)
		}
	}()
	h.Handle(evt)
}
