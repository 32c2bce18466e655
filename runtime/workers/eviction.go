package workers

import (
	"context"
	"log/slog"
	"time"
)

type IdleEvicter interface {
	EvictIdle(ctx context.Context, maxIdle time.Duration) (int, error)
}

// EvictionWorker removes records idle for longer than maxIdle, once per interval.
type EvictionWorker struct {
	log      *slog.Logger
	evicter  IdleEvicter
	maxIdle  time.Duration
	interval time.Duration
}

func NewEvictionWorker(log *slog.Logger, evicter IdleEvicter, maxIdle, interval time.Duration) *EvictionWorker {
	return &EvictionWorker{log: log, evicter: evicter, maxIdle: maxIdle, interval: interval}
}

func (w *EvictionWorker) Name() string { return "idle-eviction" }

func (w *EvictionWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			evicted, err := w.evicter.EvictIdle(ctx, w.maxIdle)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if evicted > 0 {
				w.log.Info("Idle accounts evicted", "count", evicted, "max_idle", w.maxIdle)
			}
		}
	}
}
