package domain

import "github.com/shopspring/decimal"

// MutationCommand is the validated input of a balance mutation.
type MutationCommand struct {
	AccountID AccountID       `validate:"required,max=256"`
	Delta     decimal.Decimal `validate:"-"`
}

func NewMutationCommand(id AccountID, delta decimal.Decimal) MutationCommand {
	return MutationCommand{AccountID: id, Delta: delta}
}
