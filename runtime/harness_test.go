package runtime

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"budget-grid/grid"
	"budget-grid/ledger"
	"budget-grid/mocks"
	"budget-grid/projection"
	"budget-grid/repositories"
	"budget-grid/runtime/workers"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newLocalMap(t *testing.T) *grid.LocalMap {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	m := grid.NewLocalMap(log, repositories.NewAccountRepository(db, log), "127.0.0.1:5701", time.Minute)
	t.Cleanup(m.Close)
	return m
}

func TestSpendHarness_Drains_Account_Without_Going_Negative(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	accounts := newLocalMap(t)
	mutator := ledger.NewMutator(log, accounts, 5*time.Second)

	// Given an account funded with 5 and a projection fed by the change stream
	_, err := mutator.ApplyDelta(ctx, "acct1", decimal.NewFromInt(5))
	req.NoError(err)
	balances := projection.NewBalances()
	listenCtx, stopListening := context.WithCancel(ctx)
	listener := NewListener(log, accounts, ListenConfig{
		Subscribe: domain.SubscribeOptions{IncludePrevious: true, QueueSize: 4096},
	}, balances)
	listened := make(chan struct{})
	go func() {
		listener.Run(listenCtx)
		close(listened)
	}()
	req.Eventually(func() bool { return accounts.Subscriptions() == 1 }, time.Second, 5*time.Millisecond)

	// When four workers spend random amounts until the account is empty
	harness := NewSpendHarness(log, mutator, SpendConfig{
		AccountID: "acct1",
		Workers:   4,
		Timeout:   30 * time.Second,
	}, nil)
	report, err := harness.Run(ctx)

	// Then every worker stopped on insufficient funds and nothing was lost
	req.NoError(err)
	req.False(report.TimedOut)
	req.Len(report.Outcomes, 4)
	req.Equal(4, report.InsufficientFunds())
	req.Empty(report.Failures())
	balance, err := mutator.Balance(ctx, "acct1")
	req.NoError(err)
	req.False(balance.IsNegative())
	req.True(balance.Add(report.Spent).Equal(decimal.NewFromInt(5)), "balance %s spent %s", balance, report.Spent)

	// And the observed history is a serial sequence ending on the stored balance
	req.Eventually(func() bool {
		observed, ok := balances.Balance("acct1")
		return ok && observed.Equal(balance)
	}, 2*time.Second, 10*time.Millisecond)
	history := balances.History("acct1")
	for i := 1; i < len(history); i++ {
		req.True(history[i].LessThanOrEqual(history[i-1]))
		req.False(history[i].IsNegative())
	}
	stopListening()
	<-listened
}

func TestSpendHarness_Timeout_Cancels_Workers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mutator := mocks.NewMockMutator(ctrl)

	// Given an account that never runs dry
	mutator.EXPECT().ApplyDelta(gomock.Any(), domain.AccountID("acct1"), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.AccountID, _ decimal.Decimal) (decimal.Decimal, error) {
			time.Sleep(time.Millisecond)
			return decimal.NewFromInt(1000), nil
		}).AnyTimes()
	telemetry := make(chan event.Event, 16)

	harness := NewSpendHarness(slog.Default(), mutator, SpendConfig{
		AccountID: "acct1",
		Workers:   3,
		Timeout:   50 * time.Millisecond,
	}, telemetry)
	report, err := harness.Run(context.Background())

	// Then the run ends on its timeout and each worker tells it was cancelled
	req.NoError(err)
	req.True(report.TimedOut)
	req.Len(report.Outcomes, 3)
	for i, outcome := range report.Outcomes {
		req.Equal(i+1, outcome.Worker)
		req.ErrorIs(outcome.Err, context.DeadlineExceeded)
		req.Positive(outcome.Successes)
	}
	req.Empty(report.Failures())
	req.Len(telemetry, 3)
}

func TestSpendHarness_Parent_Cancel_Is_Reported(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mutator := mocks.NewMockMutator(ctrl)
	ctx, cancel := context.WithCancel(context.Background())

	mutator.EXPECT().ApplyDelta(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.AccountID, decimal.Decimal) (decimal.Decimal, error) {
			cancel()
			return decimal.Zero, nil
		}).AnyTimes()

	report, err := NewSpendHarness(slog.Default(), mutator, SpendConfig{AccountID: "acct1", Workers: 2}, nil).Run(ctx)

	req.ErrorIs(err, context.Canceled)
	req.False(report.TimedOut)
}

func TestSpendHarness_Restarts_Worker_On_Outage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mutator := mocks.NewMockMutator(ctrl)

	// Given a grid failing long enough to exhaust retries, then an empty account
	gomock.InOrder(
		mutator.EXPECT().ApplyDelta(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(decimal.Zero, errors.ErrGridUnavailable).Times(2),
		mutator.EXPECT().ApplyDelta(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(decimal.Zero, errors.ErrInsufficientFunds),
	)
	telemetry := make(chan event.Event, 4)

	report, err := NewSpendHarness(slog.Default(), mutator, SpendConfig{
		AccountID:       "acct1",
		Workers:         1,
		RestartInterval: 5 * time.Millisecond,
		Retry:           workers.RetryPolicy{Attempts: 2, Delay: time.Millisecond},
	}, telemetry).Run(context.Background())

	// Then the worker was restarted once and its outcome kept every attempt
	req.NoError(err)
	req.Equal(1, report.InsufficientFunds())
	req.Equal(3, report.Outcomes[0].Attempts)
	restarts := 0
	for len(telemetry) > 0 {
		if (<-telemetry).Type == event.WorkerRestartedType {
			restarts++
		}
	}
	req.Equal(1, restarts)
}
