package grid

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"context"
	"sync"
	"sync/atomic"
)

// Queue is a bounded subscription queue. A full queue applies its overflow
// policy and counts what it dropped instead of blocking the publisher.
// It implements contract.Subscription.
type Queue struct {
	opts    domain.SubscribeOptions
	events  chan event.Change
	dropped atomic.Uint64

	mu      sync.Mutex
	closed  bool
	err     error
	onClose func()
	stop    func() bool
}

// NewQueue builds a queue that closes itself with ctx.Err() once ctx is done.
// onClose runs once, after the queue is closed.
func NewQueue(ctx context.Context, opts domain.SubscribeOptions, onClose func()) *Queue {
	opts = opts.Normalize()
	q := &Queue{
		opts:    opts,
		events:  make(chan event.Change, opts.QueueSize),
		onClose: onClose,
	}
	q.mu.Lock()
	q.stop = context.AfterFunc(ctx, func() { q.CloseWithError(ctx.Err()) })
	q.mu.Unlock()
	return q
}

func (q *Queue) Events() <-chan event.Change { return q.events }

func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Offer enqueues c without blocking. It returns false when c was dropped.
func (q *Queue) Offer(c event.Change) bool {
	if !q.opts.IncludePrevious {
		c = c.WithoutPrevious()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.events <- c:
		return true
	default:
	}
	q.dropped.Add(1)
	if q.opts.Overflow == domain.DropNewest {
		return false
	}
	// Offer is the only sender and holds mu, so the slot freed here stays free.
	select {
	case <-q.events:
	default:
	}
	q.events <- c
	return true
}

func (q *Queue) Close() { q.CloseWithError(nil) }

// CloseWithError ends the queue. Buffered events stay readable; Err reports err afterwards.
func (q *Queue) CloseWithError(err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.err = err
	close(q.events)
	stop := q.stop
	q.mu.Unlock()
	if stop != nil {
		stop()
	}
	if q.onClose != nil {
		q.onClose()
	}
}
