package runtime

import (
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/runtime/workers"
	"context"
	"log/slog"
	"time"
)

type ListenConfig struct {
	Subscribe            domain.SubscribeOptions
	SinkTimeout          time.Duration
	RestartInterval      time.Duration
	MetricInterval       time.Duration
	LowCapacityThreshold int
}

// Listener keeps a change observer subscribed until ctx is done,
// together with the queue monitor and the telemetry worker reading its stats.
type Listener struct {
	log        *slog.Logger
	cfg        ListenConfig
	observer   *workers.ChangeObserver
	supervisor *workers.Supervisor
	counter    *event.Counter
}

func NewListener(log *slog.Logger, accounts contract.AccountMap, cfg ListenConfig, sinks ...contract.ChangeSink) *Listener {
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = 5 * time.Second
	}
	return &Listener{
		log:        log,
		cfg:        cfg,
		observer:   workers.NewChangeObserver(log, accounts, cfg.Subscribe, cfg.SinkTimeout).Add(sinks...),
		supervisor: workers.NewSupervisor(log).WithRestartInterval(cfg.RestartInterval),
		counter:    event.NewCounter(),
	}
}

// Restarts is the number of times the observer had to re-subscribe.
func (l *Listener) Restarts() uint64 {
	return l.counter.Get(event.WorkerRestartedType)
}

// Run blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) {
	telemetry := make(chan event.Event, 64)
	l.supervisor.WithTelemetry(telemetry)
	l.supervisor.Add(
		l.observer,
		workers.NewQueueMonitor(l.log,
			[]workers.NamedQueue{{Name: "changes", Queue: l.observer}},
			telemetry, l.cfg.MetricInterval),
		workers.NewTelemetryWorker(l.log, telemetry, []event.Handler{
			event.NewQueueCapacityHandler(l.log, l.cfg.LowCapacityThreshold),
			event.NewWorkerRestartedHandler(l.log, l.counter),
		}),
	)
	l.log.Info("Starting change listener and all supervised workers")
	l.supervisor.Run(ctx)
}
