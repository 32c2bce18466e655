package event

import (
	"log/slog"
)

// WorkerRestartedHandler handles events when a supervised worker crashed and is restarted.
// It is triggered by the Supervisor, after a panic or a returned error.
type WorkerRestartedHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewWorkerRestartedHandler(log *slog.Logger, counter *Counter) *WorkerRestartedHandler {
	return &WorkerRestartedHandler{log: log, counter: counter}
}

func (h *WorkerRestartedHandler) Handle(event Event) {
	if event.Type != WorkerRestartedType {
		return
	}
	payload, ok := event.Payload.(WorkerRestarted)
	if !ok {
		h.log.Error("invalid payload", "type", event.Type)
		return
	}
	h.counter.Increment(WorkerRestartedType)
	h.log.Debug("Worker restarted",
		"name", payload.WorkerName,
		"panicked", payload.Panicked,
		"error", payload.Err,
		"total", h.counter.Get(WorkerRestartedType))
}
