// Package grid is the in-process implementation of the account map:
// BadgerDB storage, expiring per-key leases and change subscriptions.
// A node serves it over gRPC; tests use it directly.
package grid

import (
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"budget-grid/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type LocalMap struct {
	log     *slog.Logger
	repo    repositories.IAccountRepository
	locks   *LockTable
	hub     *Hub
	stripes *stripes
	now     func() time.Time

	mu    sync.RWMutex
	self  domain.Member
	peers []string
}

var _ contract.AccountMap = (*LocalMap)(nil)

func NewLocalMap(log *slog.Logger, repo repositories.IAccountRepository, address string, leaseTTL time.Duration) *LocalMap {
	now := func() time.Time { return time.Now().UTC() }
	return &LocalMap{
		log:     log,
		repo:    repo,
		locks:   NewLockTable(leaseTTL),
		hub:     NewHub(log),
		stripes: newStripes(defaultStripes),
		now:     now,
		self: domain.Member{
			UUID:      uuid.NewString(),
			Address:   address,
			Local:     true,
			StartedAt: now(),
		},
	}
}

// WithPeers declares the other members this node knows about.
func (m *LocalMap) WithPeers(addresses []string) *LocalMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers = lo.Without(lo.Uniq(addresses), m.self.Address)
	return m
}

func (m *LocalMap) Self() domain.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self
}

// UpdateSelfStats records the process stats reported with the local member.
func (m *LocalMap) UpdateSelfStats(rss uint64, cpu float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.self.RSSBytes = rss
	m.self.CPUPercent = cpu
}

func (m *LocalMap) Get(ctx context.Context, id domain.AccountID) (domain.Account, bool, error) {
	if err := checkID(ctx, id); err != nil {
		return domain.Account{}, false, err
	}
	return m.repo.Get(id)
}

func (m *LocalMap) Put(ctx context.Context, lease domain.Lease, account domain.Account) (domain.Account, error) {
	if err := checkID(ctx, account.ID); err != nil {
		return domain.Account{}, err
	}
	if lease.AccountID != account.ID {
		return domain.Account{}, fmt.Errorf("%w: lease on %s cannot write %s",
			errors.ErrNotLockOwner, lease.AccountID, account.ID)
	}
	stripe := m.stripes.of(account.ID)
	stripe.Lock()
	defer stripe.Unlock()
	if err := m.locks.Check(lease); err != nil {
		return domain.Account{}, err
	}
	stored, previous, err := m.repo.Put(account)
	if err != nil {
		return domain.Account{}, err
	}
	kind := event.Updated
	if previous == nil {
		kind = event.Added
	}
	m.hub.Publish(m.change(kind, account.ID, &stored, previous))
	return stored, nil
}

func (m *LocalMap) Remove(ctx context.Context, lease domain.Lease, id domain.AccountID) (domain.Account, bool, error) {
	if err := checkID(ctx, id); err != nil {
		return domain.Account{}, false, err
	}
	stripe := m.stripes.of(id)
	stripe.Lock()
	defer stripe.Unlock()
	if lease.AccountID != id {
		return domain.Account{}, false, fmt.Errorf("%w: lease on %s cannot remove %s",
			errors.ErrNotLockOwner, lease.AccountID, id)
	}
	if err := m.locks.Check(lease); err != nil {
		return domain.Account{}, false, err
	}
	previous, err := m.repo.Delete(id)
	if err != nil || previous == nil {
		return domain.Account{}, false, err
	}
	m.hub.Publish(m.change(event.Removed, id, nil, previous))
	return *previous, true, nil
}

func (m *LocalMap) Values(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.repo.List()
}

func (m *LocalMap) Lock(ctx context.Context, id domain.AccountID) (domain.Lease, error) {
	if err := checkID(ctx, id); err != nil {
		return domain.Lease{}, err
	}
	return m.locks.Lock(ctx, id)
}

func (m *LocalMap) Unlock(ctx context.Context, lease domain.Lease) error {
	if !m.locks.Unlock(lease) {
		m.log.Debug("Lease already released", "account_id", lease.AccountID, "fence", lease.Fence)
	}
	return nil
}

// Held tells whether id is currently under a live lease.
func (m *LocalMap) Held(id domain.AccountID) bool {
	return m.locks.Held(id)
}

// Subscribe opens a change subscription that lives until ctx is done or Close is called.
func (m *LocalMap) Subscribe(ctx context.Context, opts domain.SubscribeOptions) (contract.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.hub.Subscribe(ctx, opts), nil
}

func (m *LocalMap) Members(ctx context.Context) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	members := append([]domain.Member{m.self}, lo.Map(m.peers, func(address string, _ int) domain.Member {
		return domain.Member{Address: address}
	})...)
	m.mu.RUnlock()
	domain.SortMembers(members)
	return members, nil
}

// EvictIdle removes the records not written for maxIdle and publishes an Evicted change for each.
// Records whose lease is taken are skipped; eviction holds the lease while it deletes.
func (m *LocalMap) EvictIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	accounts, err := m.repo.List()
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-maxIdle)
	evicted := 0
	for _, candidate := range lo.Filter(accounts, func(a domain.Account, _ int) bool {
		return a.UpdatedAt.Before(cutoff)
	}) {
		if ctx.Err() != nil {
			return evicted, ctx.Err()
		}
		ok, err := m.evict(candidate.ID, cutoff)
		if err != nil {
			return evicted, err
		}
		if ok {
			evicted++
		}
	}
	return evicted, nil
}

func (m *LocalMap) evict(id domain.AccountID, cutoff time.Time) (bool, error) {
	lease, ok := m.locks.TryLock(id)
	if !ok {
		return false, nil
	}
	defer m.locks.Unlock(lease)
	stripe := m.stripes.of(id)
	stripe.Lock()
	defer stripe.Unlock()
	current, found, err := m.repo.Get(id)
	if err != nil || !found || !current.UpdatedAt.Before(cutoff) {
		return false, err
	}
	previous, err := m.repo.Delete(id)
	if err != nil || previous == nil {
		return false, err
	}
	m.log.Debug("Account evicted", "account_id", id, "version", previous.Version)
	m.hub.Publish(m.change(event.Evicted, id, nil, previous))
	return true, nil
}

// Subscriptions is the number of open change subscriptions.
func (m *LocalMap) Subscriptions() int {
	return m.hub.Len()
}

// Close ends every open subscription.
func (m *LocalMap) Close() {
	m.hub.Close(errors.ErrSubscriptionClosed)
}

func (m *LocalMap) change(kind event.Kind, id domain.AccountID, value, previous *domain.Account) event.Change {
	return event.Change{
		Kind:      kind,
		AccountID: id,
		Value:     value,
		OldValue:  previous,
		Member:    m.Self().Address,
		At:        m.now(),
	}
}

func checkID(ctx context.Context, id domain.AccountID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" || len(id) > domain.MaxAccountIDLength {
		return fmt.Errorf("%w: account id must be 1 to %d bytes", errors.ErrInvalidArgument, domain.MaxAccountIDLength)
	}
	return nil
}
