package grid

import (
	"budget-grid/domain"
	"budget-grid/errors"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultLeaseTTL = 30 * time.Second

type heldLock struct {
	lease    domain.Lease
	released chan struct{}
}

// LockTable grants exclusive, expiring leases on account ids.
// Waiters are woken when the holder unlocks or when its lease expires.
type LockTable struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	fence uint64
	held  map[domain.AccountID]*heldLock
}

func NewLockTable(ttl time.Duration) *LockTable {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &LockTable{
		ttl:  ttl,
		now:  time.Now,
		held: make(map[domain.AccountID]*heldLock),
	}
}

// Lock blocks until the lease on id is granted.
// A ctx deadline yields ErrLockTimeout, a cancellation yields ctx.Err().
func (t *LockTable) Lock(ctx context.Context, id domain.AccountID) (domain.Lease, error) {
	for {
		t.mu.Lock()
		now := t.now()
		h, ok := t.held[id]
		if !ok || h.lease.Expired(now) {
			if ok {
				close(h.released)
			}
			lease := t.grant(id, now)
			t.mu.Unlock()
			return lease, nil
		}
		released := h.released
		wait := h.lease.ExpiresAt.Sub(now)
		t.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.Lease{}, fmt.Errorf("%w: account %s", errors.ErrLockTimeout, id)
			}
			return domain.Lease{}, ctx.Err()
		case <-released:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// TryLock grants the lease on id only if no live lease exists.
func (t *LockTable) TryLock(id domain.AccountID) (domain.Lease, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	h, ok := t.held[id]
	if ok && !h.lease.Expired(now) {
		return domain.Lease{}, false
	}
	if ok {
		close(h.released)
	}
	return t.grant(id, now), true
}

func (t *LockTable) grant(id domain.AccountID, now time.Time) domain.Lease {
	t.fence++
	lease := domain.Lease{
		AccountID: id,
		Token:     uuid.NewString(),
		Fence:     t.fence,
		ExpiresAt: now.Add(t.ttl),
	}
	t.held[id] = &heldLock{lease: lease, released: make(chan struct{})}
	return lease
}

// Unlock releases the lease. Releasing a lease that is no longer held
// (already released, expired or superseded) is a no-op.
func (t *LockTable) Unlock(lease domain.Lease) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.held[lease.AccountID]
	if !ok || h.lease.Token != lease.Token {
		return false
	}
	delete(t.held, lease.AccountID)
	close(h.released)
	return true
}

// Check fails with ErrNotLockOwner unless lease is the live lease of its account.
func (t *LockTable) Check(lease domain.Lease) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.held[lease.AccountID]
	if !ok || h.lease.Token != lease.Token || h.lease.Fence != lease.Fence || h.lease.Expired(t.now()) {
		return fmt.Errorf("%w: account %s fence %d", errors.ErrNotLockOwner, lease.AccountID, lease.Fence)
	}
	return nil
}

// Held reports whether a live lease exists on id.
func (t *LockTable) Held(id domain.AccountID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.held[id]
	return ok && !h.lease.Expired(t.now())
}
