package main

import (
	"budget-grid/domain"
	"budget-grid/repositories"
	"bytes"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	defer db.Close()

	// Given one valid account and one corrupted value under the account prefix
	repo := repositories.NewAccountRepository(db, slog.New(slog.DiscardHandler))
	_, _, err = repo.Put(domain.NewAccount("acct1", decimal.RequireFromString("42.5")))
	req.NoError(err)
	req.NoError(db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(repositories.AccountPrefix+"broken"), []byte{0xff, 0x01})
	}))

	var out bytes.Buffer
	req.NoError(dump(db, repositories.AccountPrefix, &out))

	req.Contains(out.String(), "account:acct1")
	req.Contains(out.String(), "42.5")
	req.Contains(out.String(), "unreadable")
}
