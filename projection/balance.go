// Package projection builds local views from observed changes.
// Handles ordering and deduplication by record version.
// Does not emit events or interact with the grid directly.
package projection

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"context"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Balances holds the latest known record per account, plus the history of
// balances of each account in the order they were observed.
type Balances struct {
	mu      sync.RWMutex
	latest  map[domain.AccountID]domain.Account
	history map[domain.AccountID][]decimal.Decimal
	counts  map[event.Kind]int
}

func NewBalances() *Balances {
	return &Balances{
		latest:  make(map[domain.AccountID]domain.Account),
		history: make(map[domain.AccountID][]decimal.Decimal),
		counts:  make(map[event.Kind]int),
	}
}

// Consume applies a change. Replayed or out of date changes of a key are ignored.
func (b *Balances) Consume(_ context.Context, c event.Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	known, ok := b.latest[c.AccountID]
	switch c.Kind {
	case event.Added, event.Updated:
		if c.Value == nil || (ok && c.Version() <= known.Version) {
			return nil
		}
		b.latest[c.AccountID] = *c.Value
		b.history[c.AccountID] = append(b.history[c.AccountID], c.Value.Balance)
	case event.Removed, event.Evicted:
		if !ok || c.Version() < known.Version {
			return nil
		}
		delete(b.latest, c.AccountID)
	default:
		return nil
	}
	b.counts[c.Kind]++
	return nil
}

func (b *Balances) Balance(id domain.AccountID) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.latest[id]
	return a.Balance, ok
}

// History returns the balances observed for id, oldest first.
func (b *Balances) History(id domain.AccountID) []decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]decimal.Decimal(nil), b.history[id]...)
}

func (b *Balances) Count(kind event.Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts[kind]
}

// Accounts returns the known records ordered by id.
func (b *Balances) Accounts() []domain.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	accounts := lo.Values(b.latest)
	domain.SortAccounts(accounts)
	return accounts
}

// Total is the sum of every known balance.
func (b *Balances) Total() decimal.Decimal {
	return lo.Reduce(b.Accounts(), func(sum decimal.Decimal, a domain.Account, _ int) decimal.Decimal {
		return sum.Add(a.Balance)
	}, decimal.Zero)
}
