package main

import (
	"budget-grid/contract"
	"budget-grid/errors"
	"budget-grid/grid"
	"budget-grid/internal"
	"budget-grid/repositories"
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the listen command write while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() internal.ClientConfig {
	return internal.ClientConfig{
		LockTimeout:     time.Second,
		SpendWorkers:    4,
		SpendTimeout:    10 * time.Second,
		RestartInterval: 10 * time.Millisecond,
		RetryAttempts:   3,
		RetryDelay:      time.Millisecond,
		QueueSize:       64,
		Overflow:        "drop-oldest",
		SinkTimeout:     time.Second,
		MetricInterval:  time.Second,
	}
}

func newTestApp(t *testing.T) (*app, *grid.LocalMap, *syncBuffer) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := slog.New(slog.DiscardHandler)
	local := grid.NewLocalMap(log, repositories.NewAccountRepository(db, log), "127.0.0.1:5701", time.Minute)

	out := &syncBuffer{}
	a := newApp(testConfig(), log, out)
	a.connect = func(context.Context) (contract.AccountMap, func(), error) {
		return local, func() {}, nil
	}
	a.probe = func(context.Context, string) (string, error) { return "SERVING", nil }
	return a, local, out
}

func execute(ctx context.Context, a *app, args ...string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func TestAddMoney(t *testing.T) {
	req := require.New(t)
	a, local, out := newTestApp(t)

	req.NoError(execute(context.Background(), a, "add-money", "acct1", "100"))
	req.NoError(execute(context.Background(), a, "add-money", "acct1", "0.5"))

	req.Contains(out.String(), "Added 100 to account acct1\nBalance: 100\n")
	req.Contains(out.String(), "Balance: 100.5\n")
	account, found, err := local.Get(context.Background(), "acct1")
	req.NoError(err)
	req.True(found)
	req.True(account.Balance.Equal(decimal.RequireFromString("100.5")))
}

func TestAddMoney_UsageErrors(t *testing.T) {
	a, _, _ := newTestApp(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing amount", []string{"add-money", "acct1"}},
		{"amount not a number", []string{"add-money", "acct1", "ten"}},
		{"account id too long", []string{"add-money", strings.Repeat("a", 300), "1"}},
		{"unknown flag", []string{"add-money", "--force", "acct1", "1"}},
		{"unknown command", []string{"withdraw", "acct1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execute(context.Background(), a, tt.args...)
			require.Error(t, err)
			require.True(t, isUsage(err), "expected a usage error, got %v", err)
		})
	}
}

func TestAddMoney_WithdrawTooMuch(t *testing.T) {
	req := require.New(t)
	a, _, _ := newTestApp(t)
	req.NoError(execute(context.Background(), a, "add-money", "acct1", "10"))

	err := execute(context.Background(), a, "add-money", "acct1", "-11")
	req.ErrorIs(err, errors.ErrInsufficientFunds)
	req.False(isUsage(err))
}

func TestContinuousSpend_DrainsAccount(t *testing.T) {
	req := require.New(t)
	a, local, out := newTestApp(t)
	req.NoError(execute(context.Background(), a, "add-money", "acct1", "3"))

	req.NoError(execute(context.Background(), a, "continuous-spend", "acct1", "--workers", "3"))

	account, _, err := local.Get(context.Background(), "acct1")
	req.NoError(err)
	req.False(account.Balance.IsNegative())
	req.True(account.Balance.LessThan(decimal.NewFromInt(1)))
	req.Contains(out.String(), "Spent ")
	req.Contains(out.String(), "3 worker(s) out of funds")
}

func TestContinuousSpend_RejectsZeroWorkers(t *testing.T) {
	a, _, _ := newTestApp(t)
	err := execute(context.Background(), a, "continuous-spend", "acct1", "-w", "0")
	require.True(t, isUsage(err))
}

func TestListAccounts(t *testing.T) {
	req := require.New(t)
	a, _, out := newTestApp(t)
	req.NoError(execute(context.Background(), a, "add-money", "acct2", "2"))
	req.NoError(execute(context.Background(), a, "add-money", "acct1", "1"))

	req.NoError(execute(context.Background(), a, "list-accounts"))

	listing := out.String()
	req.Contains(listing, "2 account(s)")
	req.Less(strings.Index(listing, "acct1\t"), strings.Index(listing, "acct2\t"))
}

func TestListMembers(t *testing.T) {
	req := require.New(t)
	a, _, out := newTestApp(t)

	req.NoError(execute(context.Background(), a, "list-members"))

	req.Contains(out.String(), "Member [127.0.0.1:5701] this")
	req.Contains(out.String(), "SERVING")
}

func TestRemoveAccount(t *testing.T) {
	req := require.New(t)
	a, local, out := newTestApp(t)
	req.NoError(execute(context.Background(), a, "add-money", "acct1", "7"))

	req.NoError(execute(context.Background(), a, "remove-account", "acct1"))
	req.Contains(out.String(), "Removed account acct1 with balance 7")
	_, found, err := local.Get(context.Background(), "acct1")
	req.NoError(err)
	req.False(found)

	err = execute(context.Background(), a, "remove-account", "acct1")
	req.ErrorIs(err, errors.ErrAccountNotFound)
}

func TestListen_PrintsChangesAndSummary(t *testing.T) {
	req := require.New(t)
	a, local, out := newTestApp(t)
	a.config.Colours = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- execute(ctx, a, "listen", "--summary") }()
	req.Eventually(func() bool { return local.Subscriptions() == 1 }, 2*time.Second, 10*time.Millisecond)

	// When an account is created, updated then removed by another client
	writer, _, _ := newTestApp(t)
	writer.connect = a.connect
	req.NoError(execute(context.Background(), writer, "add-money", "acct1", "5"))
	req.NoError(execute(context.Background(), writer, "add-money", "acct1", "-2"))
	req.NoError(execute(context.Background(), writer, "remove-account", "acct1"))

	// Then every change is printed in order
	req.Eventually(func() bool { return strings.Contains(out.String(), "Removed: ") }, 2*time.Second, 10*time.Millisecond)
	cancel()
	req.NoError(<-done)

	printed := out.String()
	added := strings.Index(printed, "Added: ")
	updated := strings.Index(printed, "Updated: ")
	removed := strings.Index(printed, "Removed: ")
	req.True(added >= 0 && added < updated && updated < removed)
	req.Contains(printed, "1 added, 1 updated, 1 removed, 0 evicted")
}
