package event

import (
	"log/slog"
)

// QueueCapacityHandler handles events reporting the depth of an inbound event queue.
// A subscription queue close to full means events will soon be dropped.
type QueueCapacityHandler struct {
	log                  *slog.Logger
	lowCapacityThreshold int
}

func NewQueueCapacityHandler(log *slog.Logger, lowCapacityThreshold int) *QueueCapacityHandler {
	return &QueueCapacityHandler{log: log, lowCapacityThreshold: lowCapacityThreshold}
}

func (h QueueCapacityHandler) Handle(event Event) {
	if event.Type != QueueCapacityType {
		return
	}
	payload, ok := event.Payload.(QueueCapacity)
	if !ok {
		h.log.Error("invalid payload", "type", event.Type)
		return
	}
	h.log.Debug("Queue usage", "queue", payload.QueueName,
		"length", payload.Length, "capacity", payload.Capacity, "dropped", payload.Dropped)
	if payload.Capacity <= 0 {
		return
	}
	capacityLeft := payload.Capacity - payload.Length
	if capacityLeft <= h.lowCapacityThreshold {
		h.log.Warn("Queue almost full, events will be dropped",
			"queue", payload.QueueName, "capacity_left", capacityLeft, "dropped", payload.Dropped)
	}
}
