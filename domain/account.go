// Package domain contains the core concepts of the budget grid.
// Accounts are immutable values: every mutation produces a new record
// that fully replaces the stored one.
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MaxAccountIDLength bounds the size of a grid key.
const MaxAccountIDLength = 256

type AccountID string

// Account is the value stored in the budget-account map.
type Account struct {
	ID        AccountID
	Balance   decimal.Decimal
	Version   uint64 // assigned by the grid, starts at 1
	UpdatedAt time.Time
}

func NewAccount(id AccountID, balance decimal.Decimal) Account {
	return Account{ID: id, Balance: balance}
}

// WithBalance returns a replacement record carrying the new balance.
// Version and UpdatedAt are left for the grid to assign.
func (a Account) WithBalance(balance decimal.Decimal) Account {
	return Account{ID: a.ID, Balance: balance}
}

func (a Account) String() string {
	return fmt.Sprintf("BudgetAccount [accountId=%s, budget=%s, version=%d]", a.ID, a.Balance.String(), a.Version)
}

// SortAccounts orders accounts by id.
func SortAccounts(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
}
