package workers

import (
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/shopspring/decimal"
)

// AmountSource yields the amount of the next withdrawal.
type AmountSource func() decimal.Decimal

// RandomAmount draws uniformly from [0, 1) with 8 fractional digits.
func RandomAmount() decimal.Decimal {
	return decimal.NewFromInt(rand.Int64N(100_000_000)).Shift(-8)
}

// SpendOutcome tells why a spending worker stopped.
type SpendOutcome struct {
	Worker    int
	Attempts  int
	Successes int
	Spent     decimal.Decimal
	Err       error
}

type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 50 * time.Millisecond}

// SpendWorker withdraws from one account until cancelled or a terminal error.
// Lock timeouts and grid outages are retried with backoff, then returned so the
// supervisor restarts the worker. Any other error stops it and is reported once
// on the outcome channel.
type SpendWorker struct {
	id            int
	log           *slog.Logger
	mutator       contract.Mutator
	accountID     domain.AccountID
	amount        AmountSource
	retry         RetryPolicy
	outcomes      chan<- SpendOutcome
	telemetryChan chan event.Event

	mu       sync.Mutex
	outcome  SpendOutcome
	reported bool
}

func NewSpendWorker(id int, log *slog.Logger, mutator contract.Mutator, accountID domain.AccountID,
	amount AmountSource, policy RetryPolicy, outcomes chan<- SpendOutcome, telemetryChan chan event.Event) *SpendWorker {
	if amount == nil {
		amount = RandomAmount
	}
	if policy.Attempts == 0 {
		policy = DefaultRetryPolicy
	}
	return &SpendWorker{
		id:            id,
		log:           log.With("worker", id, "account_id", accountID),
		mutator:       mutator,
		accountID:     accountID,
		amount:        amount,
		retry:         policy,
		outcomes:      outcomes,
		telemetryChan: telemetryChan,
		outcome:       SpendOutcome{Worker: id, Spent: decimal.Zero},
	}
}

func (w *SpendWorker) Name() string { return fmt.Sprintf("spender-%d", w.id) }

func (w *SpendWorker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			w.stop(ctx.Err())
			return nil
		}
		amount := w.amount()
		err := w.spend(ctx, amount)
		switch {
		case err == nil:
			w.mu.Lock()
			w.outcome.Successes++
			w.outcome.Spent = w.outcome.Spent.Add(amount)
			w.mu.Unlock()
		case ctx.Err() != nil:
			w.stop(ctx.Err())
			return nil
		case transient(err):
			w.log.Warn("Grid still failing after retries", "delta", amount.Neg().String(), "error", err)
			return err
		case stderrors.Is(err, errors.ErrInsufficientFunds):
			w.log.Info("Not enough money left", "delta", amount.Neg().String())
			w.stop(err)
			return nil
		default:
			w.log.Error("Spending stopped", "delta", amount.Neg().String(), "error", err)
			w.stop(err)
			return nil
		}
	}
}

func (w *SpendWorker) spend(ctx context.Context, amount decimal.Decimal) error {
	return retry.Do(func() error {
		w.mu.Lock()
		w.outcome.Attempts++
		w.mu.Unlock()
		_, err := w.mutator.ApplyDelta(ctx, w.accountID, amount.Neg())
		return err
	},
		retry.Context(ctx),
		retry.Attempts(w.retry.Attempts),
		retry.Delay(w.retry.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(transient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			w.log.Debug("Retrying withdrawal", "attempt", attempt+1, "error", err)
		}),
	)
}

func transient(err error) bool {
	return stderrors.Is(err, errors.ErrLockTimeout) || stderrors.Is(err, errors.ErrGridUnavailable)
}

// Outcome is a snapshot of what the worker did so far.
func (w *SpendWorker) Outcome() SpendOutcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// stop records the terminal error and reports it, once.
func (w *SpendWorker) stop(err error) {
	w.mu.Lock()
	if w.reported {
		w.mu.Unlock()
		return
	}
	w.reported = true
	w.outcome.Err = err
	outcome := w.outcome
	w.mu.Unlock()

	if w.outcomes != nil {
		select {
		case w.outcomes <- outcome:
		default:
			w.log.Warn("Outcome channel full, outcome only kept in report")
		}
	}
	if w.telemetryChan != nil {
		evt := event.Event{
			Type:      event.SpendStoppedType,
			CreatedAt: time.Now().UTC(),
			Payload: event.SpendStopped{
				Worker: outcome.Worker, Attempts: outcome.Attempts,
				Successes: outcome.Successes, Err: outcome.Err,
			},
		}
		select {
		case w.telemetryChan <- evt:
		default:
			w.log.Debug("Observability telemetry event lost")
		}
	}
}
