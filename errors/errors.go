package errors

import "fmt"

var (
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrInsufficientFunds  = fmt.Errorf("not enough money on the account")
	ErrLockTimeout        = fmt.Errorf("lock acquisition timed out")
	ErrGridUnavailable    = fmt.Errorf("grid unavailable")
	ErrNotLockOwner       = fmt.Errorf("lease is not held by caller")
	ErrAccountNotFound    = fmt.Errorf("account not found")
	ErrSubscriptionClosed = fmt.Errorf("subscription closed")
	ErrUnauthenticated    = fmt.Errorf("invalid group credentials")
	ErrNoMembers          = fmt.Errorf("no grid member discovered")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
