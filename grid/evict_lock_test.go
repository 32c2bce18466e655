package grid

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/repositories"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// pausingRepository blocks the first Get until resume is closed.
type pausingRepository struct {
	repositories.IAccountRepository
	once    sync.Once
	reached chan struct{}
	resume  chan struct{}
}

func (r *pausingRepository) Get(id domain.AccountID) (domain.Account, bool, error) {
	r.once.Do(func() {
		close(r.reached)
		<-r.resume
	})
	return r.IAccountRepository.Get(id)
}

func TestLocalMap_EvictIdle_Holds_The_Lease_While_Deleting(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	store := repositories.NewAccountRepository(db, slogDiscard())
	repo := &pausingRepository{IAccountRepository: store, reached: make(chan struct{}), resume: make(chan struct{})}
	m := NewLocalMap(slogDiscard(), repo, "127.0.0.1:5701", time.Minute)
	t.Cleanup(m.Close)

	// Given an idle account holding 10
	_, _, err = store.Put(domain.NewAccount("acct1", decimal.NewFromInt(10)))
	req.NoError(err)
	sub, err := m.Subscribe(ctx, domain.SubscribeOptions{IncludePrevious: true})
	req.NoError(err)
	time.Sleep(5 * time.Millisecond)

	// When eviction is paused on its read and a mutator asks for the lock
	evicted := make(chan int, 1)
	go func() {
		n, _ := m.EvictIdle(ctx, time.Millisecond)
		evicted <- n
	}()
	<-repo.reached
	locked := make(chan struct{})
	found := make(chan bool, 1)
	go func() {
		lease, err := m.Lock(ctx, "acct1")
		if err != nil {
			found <- true
			return
		}
		close(locked)
		_, ok, _ := m.Get(ctx, "acct1")
		_ = m.Unlock(ctx, lease)
		found <- ok
	}()

	// Then the mutator waits for eviction to finish
	req.Never(func() bool {
		select {
		case <-locked:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)
	close(repo.resume)
	req.Equal(1, <-evicted)

	// And it reads the account as gone, so a withdrawal cannot resurrect it
	req.False(<-found)
	c := next(t, sub.Events())
	req.Equal(event.Evicted, c.Kind)
	req.Empty(sub.Events())
}
