package event

import (
	"budget-grid/domain"
	"fmt"
	"time"
)

// Kind tags a change of one account record.
type Kind string

const (
	Added   Kind = "ADDED"
	Updated Kind = "UPDATED"
	Removed Kind = "REMOVED"
	Evicted Kind = "EVICTED"
)

func (k Kind) Valid() bool {
	switch k {
	case Added, Updated, Removed, Evicted:
		return true
	}
	return false
}

// Label is the human readable prefix used by the live feed.
func (k Kind) Label() string {
	switch k {
	case Added:
		return "Added"
	case Updated:
		return "Updated"
	case Removed:
		return "Removed"
	case Evicted:
		return "Evicted"
	}
	return string(k)
}

// Change is the single event type delivered to subscribers.
// Value is the record after the change (nil for Removed and Evicted).
// OldValue is only filled when the subscription asked for previous values.
type Change struct {
	Kind      Kind
	AccountID domain.AccountID
	Value     *domain.Account
	OldValue  *domain.Account
	Member    string
	At        time.Time
}

// Version identifies the logical change for de-duplication.
// Removals carry the version of the record that disappeared.
func (c Change) Version() uint64 {
	switch {
	case c.Value != nil:
		return c.Value.Version
	case c.OldValue != nil:
		return c.OldValue.Version
	}
	return 0
}

// WithoutPrevious strips the previous value for subscribers that did not ask for it.
func (c Change) WithoutPrevious() Change {
	c.OldValue = nil
	return c
}

func (c Change) String() string {
	return fmt.Sprintf("EntryEvent {key=%s, event=%s, value=%s, oldValue=%s, member=%s}",
		c.AccountID, c.Kind, describe(c.Value), describe(c.OldValue), c.Member)
}

func describe(a *domain.Account) string {
	if a == nil {
		return "null"
	}
	return a.String()
}
