package grid

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Hub publishes changes to every open subscription queue.
type Hub struct {
	mu     sync.RWMutex
	log    *slog.Logger
	next   uint64
	queues map[uint64]*Queue
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, queues: make(map[uint64]*Queue)}
}

func (h *Hub) Subscribe(ctx context.Context, opts domain.SubscribeOptions) *Queue {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	q := NewQueue(ctx, opts, func() { h.remove(id) })
	h.queues[id] = q
	return q
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.queues, id)
}

func (h *Hub) Publish(c event.Change) {
	h.mu.RLock()
	queues := lo.Values(h.queues)
	h.mu.RUnlock()
	for _, q := range queues {
		if !q.Offer(c) {
			h.log.Debug("Change dropped by a subscriber", "account_id", c.AccountID,
				"kind", c.Kind, "dropped", q.Dropped())
		}
	}
}

// Len is the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.queues)
}

// Close ends every subscription with err.
func (h *Hub) Close(err error) {
	h.mu.RLock()
	queues := lo.Values(h.queues)
	h.mu.RUnlock()
	for _, q := range queues {
		q.CloseWithError(err)
	}
}
