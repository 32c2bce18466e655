package repositories

import (
	"budget-grid/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Put_Assigns_Versions_And_Returns_Previous(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repository := NewAccountRepository(openTestDB(t), slog.Default()).
		WithClock(func() time.Time { return at })

	// When an unseen account is stored
	stored, previous, err := repository.Put(domain.NewAccount("acct1", decimal.NewFromInt(100)))
	req.NoError(err)

	// Then it is created at version 1 without previous record
	req.Nil(previous)
	req.Equal(uint64(1), stored.Version)
	req.Equal(at, stored.UpdatedAt)

	// When the account is replaced
	stored, previous, err = repository.Put(stored.WithBalance(decimal.NewFromInt(90)))
	req.NoError(err)

	// Then the previous record is returned and the version grows
	req.NotNil(previous)
	req.True(previous.Balance.Equal(decimal.NewFromInt(100)))
	req.Equal(uint64(2), stored.Version)

	fetched, found, err := repository.Get("acct1")
	req.NoError(err)
	req.True(found)
	req.True(fetched.Balance.Equal(decimal.NewFromInt(90)))
	req.Equal(uint64(2), fetched.Version)
}

func Test_Get_Unknown_Account(t *testing.T) {
	req := require.New(t)
	repository := NewAccountRepository(openTestDB(t), slog.Default())

	_, found, err := repository.Get("nobody")
	req.NoError(err)
	req.False(found)
}

func Test_List_Returns_Accounts_In_Key_Order(t *testing.T) {
	req := require.New(t)
	repository := NewAccountRepository(openTestDB(t), slog.Default())

	for _, id := range []domain.AccountID{"bob", "alice", "clara"} {
		_, _, err := repository.Put(domain.NewAccount(id, decimal.NewFromFloat(1.5)))
		req.NoError(err)
	}

	accounts, err := repository.List()
	req.NoError(err)
	req.Len(accounts, 3)
	req.Equal(domain.AccountID("alice"), accounts[0].ID)
	req.Equal(domain.AccountID("bob"), accounts[1].ID)
	req.Equal(domain.AccountID("clara"), accounts[2].ID)
}

func Test_Delete_Returns_Removed_Record(t *testing.T) {
	req := require.New(t)
	repository := NewAccountRepository(openTestDB(t), slog.Default())
	_, _, err := repository.Put(domain.NewAccount("acct1", decimal.NewFromInt(3)))
	req.NoError(err)

	removed, err := repository.Delete("acct1")
	req.NoError(err)
	req.NotNil(removed)
	req.Equal(domain.AccountID("acct1"), removed.ID)

	// Deleting twice is a no-op
	removed, err = repository.Delete("acct1")
	req.NoError(err)
	req.Nil(removed)

	_, found, err := repository.Get("acct1")
	req.NoError(err)
	req.False(found)
}
