package grid

import (
	"budget-grid/domain"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultStripes = 64

// stripes serializes the write and publish of one key.
// Keys sharing a stripe are serialized too, distinct stripes never block each other.
type stripes struct {
	locks []sync.Mutex
}

func newStripes(n int) *stripes {
	if n <= 0 {
		n = defaultStripes
	}
	return &stripes{locks: make([]sync.Mutex, n)}
}

func (s *stripes) of(id domain.AccountID) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(string(id))%uint64(len(s.locks))]
}
