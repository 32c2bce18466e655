package workers

import (
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultSinkTimeout = 2 * time.Second

// ChangeObserver subscribes to the account map and hands every change to its sinks.
//
// Delivery is at least once from the grid and best effort toward sinks: a slow
// sink is cut by its timeout and a full inbound queue drops per its overflow policy.
// Losing the subscription returns ErrGridUnavailable so the supervisor re-subscribes.
type ChangeObserver struct {
	log         *slog.Logger
	accounts    contract.AccountMap
	opts        domain.SubscribeOptions
	sinkTimeout time.Duration
	sinks       []contract.ChangeSink

	mu  sync.RWMutex
	sub contract.Subscription
}

func NewChangeObserver(log *slog.Logger, accounts contract.AccountMap,
	opts domain.SubscribeOptions, sinkTimeout time.Duration) *ChangeObserver {
	if sinkTimeout <= 0 {
		sinkTimeout = DefaultSinkTimeout
	}
	return &ChangeObserver{
		log:         log,
		accounts:    accounts,
		opts:        opts.Normalize(),
		sinkTimeout: sinkTimeout,
	}
}

func (w *ChangeObserver) Add(sinks ...contract.ChangeSink) *ChangeObserver {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *ChangeObserver) Name() string { return "change-observer" }

func (w *ChangeObserver) Run(ctx context.Context) error {
	sub, err := w.accounts.Subscribe(ctx, w.opts)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	w.setSubscription(sub)
	defer func() {
		sub.Close()
		w.setSubscription(nil)
	}()
	w.log.Info("Listening for account changes",
		"include_previous", w.opts.IncludePrevious, "queue_size", w.opts.QueueSize, "overflow", w.opts.Overflow)

	var dropped uint64
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping change observer")
			return nil
		case c, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: subscription ended: %v", errors.ErrGridUnavailable, sub.Err())
			}
			if n := sub.Dropped(); n > dropped {
				w.log.Warn("Changes dropped by the inbound queue", "dropped", n-dropped, "total", n)
				dropped = n
			}
			w.Dispatch(ctx, c)
		}
	}
}

// Dispatch is the single entry point of every change.
func (w *ChangeObserver) Dispatch(ctx context.Context, c event.Change) {
	switch c.Kind {
	case event.Added, event.Updated:
		if c.Value == nil {
			w.log.Warn("Change without value ignored", "account_id", c.AccountID, "kind", c.Kind)
			return
		}
	case event.Removed, event.Evicted:
	default:
		w.log.Warn("Unknown change kind ignored", "account_id", c.AccountID, "kind", c.Kind)
		return
	}
	w.Fanout(ctx, c)
}

// Fanout One sink for each change, each bounded by the sink timeout
func (w *ChangeObserver) Fanout(ctx context.Context, c event.Change) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, c); err != nil {
			w.log.Warn("Sink failed to consume change",
				"sink", fmt.Sprintf("%T", sink), "account_id", c.AccountID, "kind", c.Kind, "error", err)
		}
		cancel()
	}
}

// QueueStats reports the inbound queue of the current subscription.
func (w *ChangeObserver) QueueStats() (length, capacity int, dropped uint64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.sub == nil {
		return 0, 0, 0
	}
	return len(w.sub.Events()), cap(w.sub.Events()), w.sub.Dropped()
}

func (w *ChangeObserver) setSubscription(sub contract.Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sub = sub
}
