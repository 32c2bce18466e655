package event

import (
	"log/slog"
)

// SpendStoppedHandler logs why each spending worker stopped.
type SpendStoppedHandler struct {
	log *slog.Logger
}

func NewSpendStoppedHandler(log *slog.Logger) *SpendStoppedHandler {
	return &SpendStoppedHandler{log: log}
}

func (h *SpendStoppedHandler) Handle(event Event) {
	if event.Type != SpendStoppedType {
		return
	}
	payload, ok := event.Payload.(SpendStopped)
	if !ok {
		h.log.Error("invalid payload", "type", event.Type)
		return
	}
	h.log.Info("Spend worker stopped",
		"worker", payload.Worker,
		"attempts", payload.Attempts,
		"successes", payload.Successes,
		"reason", payload.Err)
}
