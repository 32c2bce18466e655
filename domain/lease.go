package domain

import "time"

// Lease proves ownership of the exclusive lock on one account.
// Fence grows monotonically across all leases granted by a member,
// so a write presenting an older lease can be told apart from the current one.
type Lease struct {
	AccountID AccountID
	Token     string
	Fence     uint64
	ExpiresAt time.Time
}

func (l Lease) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && !now.Before(l.ExpiresAt)
}
