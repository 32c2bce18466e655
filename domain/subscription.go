package domain

import "fmt"

// OverflowPolicy decides what a full subscription queue does with a new event.
type OverflowPolicy string

const (
	// DropNewest discards the incoming event and keeps the queue as is.
	DropNewest OverflowPolicy = "drop-newest"
	// DropOldest discards the head of the queue to make room for the incoming event.
	DropOldest OverflowPolicy = "drop-oldest"
)

const DefaultQueueSize = 1024

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case DropNewest, DropOldest:
		return OverflowPolicy(s), nil
	case "":
		return DropOldest, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q", s)
}

type SubscribeOptions struct {
	IncludePrevious bool
	QueueSize       int
	Overflow        OverflowPolicy
}

// Normalize fills unset options with defaults.
func (o SubscribeOptions) Normalize() SubscribeOptions {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Overflow == "" {
		o.Overflow = DropOldest
	}
	return o
}
