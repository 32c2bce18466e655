// Package runtime wires workers under a supervisor for the long-running commands.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"budget-grid/runtime/workers"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const DefaultSpendTimeout = 5 * time.Minute

type SpendConfig struct {
	AccountID       domain.AccountID
	Workers         int
	Timeout         time.Duration
	RestartInterval time.Duration
	Retry           workers.RetryPolicy
	Amount          workers.AmountSource
}

// SpendReport sums up a continuous-spend run.
type SpendReport struct {
	AccountID domain.AccountID
	Outcomes  []workers.SpendOutcome
	Spent     decimal.Decimal
	TimedOut  bool
	Elapsed   time.Duration
}

// InsufficientFunds counts the workers stopped by an empty account.
func (r SpendReport) InsufficientFunds() int {
	return lo.CountBy(r.Outcomes, func(o workers.SpendOutcome) bool {
		return stderrors.Is(o.Err, errors.ErrInsufficientFunds)
	})
}

// Failures are the outcomes ended by anything else than an empty account or a cancellation.
func (r SpendReport) Failures() []workers.SpendOutcome {
	return lo.Filter(r.Outcomes, func(o workers.SpendOutcome, _ int) bool {
		return o.Err != nil &&
			!stderrors.Is(o.Err, errors.ErrInsufficientFunds) &&
			!stderrors.Is(o.Err, context.Canceled) &&
			!stderrors.Is(o.Err, context.DeadlineExceeded)
	})
}

// SpendHarness runs a pool of spending workers against one account until every
// worker stopped, the timeout elapsed or the parent context is cancelled.
type SpendHarness struct {
	log           *slog.Logger
	mutator       contract.Mutator
	cfg           SpendConfig
	telemetryChan chan event.Event
}

func NewSpendHarness(log *slog.Logger, mutator contract.Mutator, cfg SpendConfig, telemetryChan chan event.Event) *SpendHarness {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSpendTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &SpendHarness{log: log, mutator: mutator, cfg: cfg, telemetryChan: telemetryChan}
}

func (h *SpendHarness) Run(ctx context.Context) (SpendReport, error) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	outcomes := make(chan workers.SpendOutcome, h.cfg.Workers)
	spenders := lo.Times(h.cfg.Workers, func(i int) *workers.SpendWorker {
		return workers.NewSpendWorker(i+1, h.log, h.mutator, h.cfg.AccountID,
			h.cfg.Amount, h.cfg.Retry, outcomes, h.telemetryChan)
	})
	supervisor := workers.NewSupervisor(h.log).
		WithRestartInterval(h.cfg.RestartInterval).
		WithTelemetry(h.telemetryChan)
	for _, s := range spenders {
		supervisor.Add(s)
	}

	// Terminal outcomes are logged as they happen, the report is built once all workers are gone.
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for outcome := range outcomes {
			h.log.Info("Spender stopped", "worker", outcome.Worker,
				"successes", outcome.Successes, "reason", outcome.Err)
		}
	}()

	h.log.Info("Spending started", "account_id", h.cfg.AccountID,
		"workers", h.cfg.Workers, "timeout", h.cfg.Timeout)
	supervisor.Run(runCtx)
	close(outcomes)
	<-logged

	report := SpendReport{
		AccountID: h.cfg.AccountID,
		Spent:     decimal.Zero,
		TimedOut:  ctx.Err() == nil && stderrors.Is(runCtx.Err(), context.DeadlineExceeded),
		Elapsed:   time.Since(start),
	}
	for _, s := range spenders {
		outcome := s.Outcome()
		if outcome.Err == nil {
			// Stopped by the supervisor while waiting for a restart.
			outcome.Err = runCtx.Err()
		}
		report.Outcomes = append(report.Outcomes, outcome)
		report.Spent = report.Spent.Add(outcome.Spent)
	}
	sort.Slice(report.Outcomes, func(i, j int) bool { return report.Outcomes[i].Worker < report.Outcomes[j].Worker })

	h.log.Info("Spending finished", "account_id", h.cfg.AccountID, "spent", report.Spent.String(),
		"timed_out", report.TimedOut, "elapsed", report.Elapsed)
	if ctx.Err() != nil {
		return report, fmt.Errorf("spending on %s interrupted: %w", h.cfg.AccountID, ctx.Err())
	}
	return report, nil
}
