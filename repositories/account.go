//go:generate go run go.uber.org/mock/mockgen -source=account.go -destination=../mocks/mock_account_repository.go -package=mocks
package repositories

import (
	"budget-grid/domain"
	"budget-grid/wire"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const AccountPrefix = "account:"

type IAccountRepository interface {
	Get(id domain.AccountID) (domain.Account, bool, error)
	List() ([]domain.Account, error)
	Put(account domain.Account) (stored domain.Account, previous *domain.Account, err error)
	Delete(id domain.AccountID) (*domain.Account, error)
}

// AccountRepository stores budget accounts in BadgerDB.
// Values are protobuf-encoded Structs, see package wire.
type AccountRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewAccountRepository(db *badger.DB, log *slog.Logger) AccountRepository {
	return AccountRepository{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the clock used to stamp UpdatedAt.
func (r AccountRepository) WithClock(now func() time.Time) AccountRepository {
	r.now = now
	return r
}

func accountKey(id domain.AccountID) []byte {
	return []byte(AccountPrefix + string(id))
}

func (r AccountRepository) Get(id domain.AccountID) (domain.Account, bool, error) {
	var account domain.Account
	var found bool
	err := r.db.View(func(txn *badger.Txn) error {
		current, err := readAccount(txn, id)
		if err != nil || current == nil {
			return err
		}
		account, found = *current, true
		return nil
	})
	return account, found, err
}

// List scans every account with a prefix iteration, in key order.
func (r AccountRepository) List() ([]domain.Account, error) {
	var accounts []domain.Account
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(AccountPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				account, err := wire.UnmarshalAccount(value)
				if err != nil {
					r.log.Warn("Skipping unreadable account", "key", string(item.Key()), "error", err)
					return nil
				}
				accounts = append(accounts, account)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return accounts, err
}

// Put replaces the account in a single transaction.
// The stored record gets the next version and a fresh UpdatedAt;
// the previous record, if any, is returned alongside.
func (r AccountRepository) Put(account domain.Account) (domain.Account, *domain.Account, error) {
	var stored domain.Account
	var previous *domain.Account
	err := r.db.Update(func(txn *badger.Txn) error {
		current, err := readAccount(txn, account.ID)
		if err != nil {
			return err
		}
		previous = current
		stored = account
		stored.Version = 1
		if current != nil {
			stored.Version = current.Version + 1
		}
		stored.UpdatedAt = r.now()
		bytes, err := wire.MarshalAccount(stored)
		if err != nil {
			return err
		}
		return txn.Set(accountKey(account.ID), bytes)
	})
	if err != nil {
		return domain.Account{}, nil, fmt.Errorf("put account %s: %w", account.ID, err)
	}
	return stored, previous, nil
}

// Delete removes the account and returns the removed record, nil when it did not exist.
func (r AccountRepository) Delete(id domain.AccountID) (*domain.Account, error) {
	var previous *domain.Account
	err := r.db.Update(func(txn *badger.Txn) error {
		current, err := readAccount(txn, id)
		if err != nil || current == nil {
			return err
		}
		previous = current
		return txn.Delete(accountKey(id))
	})
	if err != nil {
		return nil, fmt.Errorf("delete account %s: %w", id, err)
	}
	return previous, nil
}

func readAccount(txn *badger.Txn, id domain.AccountID) (*domain.Account, error) {
	item, err := txn.Get(accountKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var account domain.Account
	err = item.Value(func(value []byte) error {
		account, err = wire.UnmarshalAccount(value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}
