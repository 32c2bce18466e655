package sink

import (
	"budget-grid/domain/event"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

var kindColors = map[event.Kind]color.Style{
	event.Added:   color.New(color.FgGreen),
	event.Updated: color.New(color.FgCyan),
	event.Removed: color.New(color.FgRed),
	event.Evicted: color.New(color.FgYellow),
}

// ConsoleSink prints one line per change, prefixed by its kind.
type ConsoleSink struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
}

func NewConsoleSink(out io.Writer, colours bool) *ConsoleSink {
	return &ConsoleSink{out: out, colours: colours}
}

func (s *ConsoleSink) Consume(_ context.Context, c event.Change) error {
	label := c.Kind.Label() + ":"
	if style, ok := kindColors[c.Kind]; ok && s.colours {
		label = style.Render(label)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "%s %s\n", label, c)
	return err
}
