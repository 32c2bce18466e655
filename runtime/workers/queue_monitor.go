package workers

import (
	"budget-grid/domain/event"
	"context"
	"log/slog"
	"time"
)

// QueueGauge exposes the depth of a bounded queue.
type QueueGauge interface {
	QueueStats() (length, capacity int, dropped uint64)
}

type NamedQueue struct {
	Name  string
	Queue QueueGauge
}

// QueueMonitor periodically reports the length and capacity of each queue.
// Reading the stats is non-blocking, so this won't interfere with the consumers.
// It's okay if an event is dropped occasionally because metrics are sampled periodically.
type QueueMonitor struct {
	log            *slog.Logger
	queues         []NamedQueue
	telemetryChan  chan event.Event
	metricInterval time.Duration
}

func NewQueueMonitor(log *slog.Logger, queues []NamedQueue,
	telemetryChan chan event.Event, metricInterval time.Duration) *QueueMonitor {
	return &QueueMonitor{
		log:            log,
		queues:         queues,
		telemetryChan:  telemetryChan,
		metricInterval: metricInterval,
	}
}

func (w QueueMonitor) Name() string { return "queue-monitor" }

func (w QueueMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping queue monitor")
			return nil
		case <-ticker.C:
			for _, nq := range w.queues {
				length, capacity, dropped := nq.Queue.QueueStats()
				select {
				case <-ctx.Done():
					return nil
				case w.telemetryChan <- toCapacityEvent(nq.Name, capacity, length, dropped):
				default:
					w.log.Debug("Observability telemetry event lost")
				}
			}
		}
	}
}

func toCapacityEvent(name string, capacity, length int, dropped uint64) event.Event {
	return event.Event{
		Type:      event.QueueCapacityType,
		CreatedAt: time.Now().UTC(),
		Payload: event.QueueCapacity{
			QueueName: name,
			Capacity:  capacity,
			Length:    length,
			Dropped:   dropped,
		},
	}
}
