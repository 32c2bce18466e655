package grid

import (
	"budget-grid/repositories"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestMap(t *testing.T, leaseTTL time.Duration) *LocalMap {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := slog.Default()
	m := NewLocalMap(log, repositories.NewAccountRepository(db, log), "127.0.0.1:5701", leaseTTL)
	t.Cleanup(m.Close)
	return m
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
