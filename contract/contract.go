//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"context"
	"reflect"

	"github.com/shopspring/decimal"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Workers implementing Named provide their own name instead.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	if named, ok := w.(Named); ok {
		return named.Name()
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type Named interface {
	Name() string
}

// AccountMap is the client side of one distributed map from account id to account record.
// Every call may block on the grid; all of them honour ctx.
type AccountMap interface {
	Get(ctx context.Context, id domain.AccountID) (domain.Account, bool, error)
	// Put replaces the full record. The lease must be live and cover the account.
	Put(ctx context.Context, lease domain.Lease, account domain.Account) (domain.Account, error)
	Remove(ctx context.Context, lease domain.Lease, id domain.AccountID) (domain.Account, bool, error)
	Values(ctx context.Context) ([]domain.Account, error)
	// Lock blocks until the exclusive lock on id is granted or ctx is done.
	Lock(ctx context.Context, id domain.AccountID) (domain.Lease, error)
	Unlock(ctx context.Context, lease domain.Lease) error
	Subscribe(ctx context.Context, opts domain.SubscribeOptions) (Subscription, error)
	Members(ctx context.Context) ([]domain.Member, error)
}

// Subscription is a live, bounded stream of change events.
// Events is closed when the subscription ends; Err then tells why.
type Subscription interface {
	Events() <-chan event.Change
	Dropped() uint64
	Err() error
	Close()
}

type ChangeSink interface {
	Consume(ctx context.Context, c event.Change) error
}

// Discoverer resolves candidate grid member addresses (host:port).
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

type Mutator interface {
	ApplyDelta(ctx context.Context, id domain.AccountID, delta decimal.Decimal) (decimal.Decimal, error)
}
