package grid

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func change(version uint64) event.Change {
	return event.Change{
		Kind:      event.Updated,
		AccountID: "acct1",
		Value:     &domain.Account{ID: "acct1", Version: version},
		OldValue:  &domain.Account{ID: "acct1", Version: version - 1},
	}
}

func drain(q *Queue) []uint64 {
	q.Close()
	var versions []uint64
	for c := range q.Events() {
		versions = append(versions, c.Version())
	}
	return versions
}

func TestQueue_DropNewest_Keeps_Head(t *testing.T) {
	req := require.New(t)
	q := NewQueue(context.Background(), domain.SubscribeOptions{QueueSize: 2, Overflow: domain.DropNewest}, nil)

	for v := uint64(1); v <= 4; v++ {
		q.Offer(change(v))
	}

	req.Equal([]uint64{1, 2}, drain(q))
	req.Equal(uint64(2), q.Dropped())
}

func TestQueue_DropOldest_Keeps_Tail(t *testing.T) {
	req := require.New(t)
	q := NewQueue(context.Background(), domain.SubscribeOptions{QueueSize: 2, Overflow: domain.DropOldest}, nil)

	for v := uint64(1); v <= 4; v++ {
		q.Offer(change(v))
	}

	req.Equal([]uint64{3, 4}, drain(q))
	req.Equal(uint64(2), q.Dropped())
}

func TestQueue_Strips_Previous_Unless_Asked(t *testing.T) {
	req := require.New(t)
	without := NewQueue(context.Background(), domain.SubscribeOptions{}, nil)
	with := NewQueue(context.Background(), domain.SubscribeOptions{IncludePrevious: true}, nil)

	without.Offer(change(2))
	with.Offer(change(2))

	req.Nil((<-without.Events()).OldValue)
	req.NotNil((<-with.Events()).OldValue)
}

func TestQueue_Closes_With_Context(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	closed := make(chan struct{})
	q := NewQueue(ctx, domain.SubscribeOptions{}, func() { close(closed) })

	cancel()
	<-closed

	_, open := <-q.Events()
	req.False(open)
	req.ErrorIs(q.Err(), context.Canceled)
	req.False(q.Offer(change(1)))
}

func TestHub_Publishes_To_Every_Subscriber(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slogDiscard())
	queues := lo.Times(3, func(int) *Queue {
		return hub.Subscribe(context.Background(), domain.SubscribeOptions{})
	})

	hub.Publish(change(1))

	for _, q := range queues {
		req.Equal(uint64(1), (<-q.Events()).Version())
	}
	queues[0].Close()
	req.Equal(2, hub.Len())
}

func TestQueue_Closes_At_Once_On_Done_Context(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 200 {
		closed := make(chan struct{})
		q := NewQueue(ctx, domain.SubscribeOptions{}, func() { close(closed) })
		<-closed
		_, open := <-q.Events()
		req.False(open)
		req.ErrorIs(q.Err(), context.Canceled)
	}
}
