package sink

import (
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/domain/event"
	"context"
	"sync"
)

type lastSeen struct {
	version uint64
	gone    bool
}

// DedupSink forwards a change only when it moves its key forward.
// Replays of an already seen version and late changes are dropped,
// which turns at-least-once delivery into effectively-once for next.
type DedupSink struct {
	mu      sync.Mutex
	next    contract.ChangeSink
	seen    map[domain.AccountID]lastSeen
	dropped uint64
}

func NewDedupSink(next contract.ChangeSink) *DedupSink {
	return &DedupSink{next: next, seen: make(map[domain.AccountID]lastSeen)}
}

func (s *DedupSink) Consume(ctx context.Context, c event.Change) error {
	if !s.admit(c) {
		return nil
	}
	return s.next.Consume(ctx, c)
}

func (s *DedupSink) admit(c event.Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.seen[c.AccountID]
	version := c.Version()
	admitted := !ok
	if ok {
		switch c.Kind {
		case event.Added:
			// A removed key starts again from version 1.
			admitted = last.gone || version > last.version
		case event.Updated:
			admitted = !last.gone && version > last.version
		case event.Removed, event.Evicted:
			// Without a previous value the removed version is unknown (0).
			admitted = !last.gone && (version == 0 || version >= last.version)
			if version == 0 {
				version = last.version
			}
		}
	}
	if !admitted {
		s.dropped++
		return false
	}
	s.seen[c.AccountID] = lastSeen{
		version: version,
		gone:    c.Kind == event.Removed || c.Kind == event.Evicted,
	}
	return true
}

// Dropped is the number of duplicate or stale changes filtered out.
func (s *DedupSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
