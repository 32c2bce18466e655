// Package ledger applies balance mutations to accounts stored in the grid.
// Every mutation runs under the exclusive lock of its account.
package ledger

import (
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	DefaultLockTimeout = 10 * time.Second
	unlockTimeout      = 5 * time.Second
)

type Mutator struct {
	log         *slog.Logger
	accounts    contract.AccountMap
	lockTimeout time.Duration
	validate    *validator.Validate
}

var _ contract.Mutator = (*Mutator)(nil)

func NewMutator(log *slog.Logger, accounts contract.AccountMap, lockTimeout time.Duration) *Mutator {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Mutator{
		log:         log,
		accounts:    accounts,
		lockTimeout: lockTimeout,
		validate:    validator.New(),
	}
}

// ApplyDelta adds delta to the balance of id and returns the new balance.
// An unseen account is created by a non-negative delta. A withdrawal larger
// than the balance fails with ErrInsufficientFunds and writes nothing.
func (m *Mutator) ApplyDelta(ctx context.Context, id domain.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := m.validate.Struct(domain.NewMutationCommand(id, delta)); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	log := m.log.With("account_id", id, "delta", delta.String())

	lease, err := m.lock(ctx, id)
	if err != nil {
		log.Warn("Lock not acquired", "error", err)
		return decimal.Zero, fmt.Errorf("apply %s to %s: %w", delta, id, err)
	}
	defer m.unlock(ctx, log, lease)

	current, found, err := m.accounts.Get(ctx, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("apply %s to %s: read: %w", delta, id, err)
	}

	next, err := nextBalance(current, found, delta)
	if err != nil {
		log.Debug("Mutation rejected", "balance", current.Balance.String())
		return decimal.Zero, fmt.Errorf("apply %s to %s: %w", delta, id, err)
	}

	record := domain.NewAccount(id, next)
	if found {
		record = current.WithBalance(next)
	}
	stored, err := m.accounts.Put(ctx, lease, record)
	if err != nil {
		log.Error("Write failed", "error", err)
		return decimal.Zero, fmt.Errorf("apply %s to %s: write: %w", delta, id, err)
	}
	log.Debug("Balance updated", "balance", stored.Balance.String(), "version", stored.Version)
	return stored.Balance, nil
}

func nextBalance(current domain.Account, found bool, delta decimal.Decimal) (decimal.Decimal, error) {
	if !found {
		if delta.IsNegative() {
			return decimal.Zero, errors.ErrInsufficientFunds
		}
		return delta, nil
	}
	if delta.IsNegative() && current.Balance.LessThan(delta.Neg()) {
		return decimal.Zero, errors.ErrInsufficientFunds
	}
	return current.Balance.Add(delta), nil
}

// Remove deletes the account under its lock and returns the removed record.
func (m *Mutator) Remove(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	if err := m.validate.Struct(domain.NewMutationCommand(id, decimal.Zero)); err != nil {
		return domain.Account{}, fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	log := m.log.With("account_id", id)
	lease, err := m.lock(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("remove %s: %w", id, err)
	}
	defer m.unlock(ctx, log, lease)

	removed, found, err := m.accounts.Remove(ctx, lease, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("remove %s: %w", id, err)
	}
	if !found {
		return domain.Account{}, fmt.Errorf("remove %s: %w", id, errors.ErrAccountNotFound)
	}
	log.Info("Account removed", "balance", removed.Balance.String())
	return removed, nil
}

// Balance reads the current balance without locking.
func (m *Mutator) Balance(ctx context.Context, id domain.AccountID) (decimal.Decimal, error) {
	account, found, err := m.accounts.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%s: %w", id, errors.ErrAccountNotFound)
	}
	return account.Balance, nil
}

func (m *Mutator) Accounts(ctx context.Context) ([]domain.Account, error) {
	return m.accounts.Values(ctx)
}

// lock bounds the wait with lockTimeout. Only the expiry of that bound is a
// lock timeout; a cancelled or expired parent context is returned as is.
func (m *Mutator) lock(ctx context.Context, id domain.AccountID) (domain.Lease, error) {
	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()
	lease, err := m.accounts.Lock(lockCtx, id)
	if err == nil {
		return lease, nil
	}
	if ctx.Err() != nil {
		return domain.Lease{}, ctx.Err()
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return domain.Lease{}, fmt.Errorf("%w: waited %s", errors.ErrLockTimeout, m.lockTimeout)
	}
	return domain.Lease{}, err
}

// unlock runs even when ctx is already cancelled.
func (m *Mutator) unlock(ctx context.Context, log *slog.Logger, lease domain.Lease) {
	unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()
	if err := m.accounts.Unlock(unlockCtx, lease); err != nil {
		log.Warn("Lock release failed, lease will expire", "fence", lease.Fence, "error", err)
	}
}
