package event

import "time"

// Type tags a technical event. Technical events describe the runtime
// (workers, queues), never account data.
type Type string

const (
	WorkerRestartedType Type = "WORKER_RESTARTED"
	QueueCapacityType   Type = "QUEUE_CAPACITY"
	SpendStoppedType    Type = "SPEND_STOPPED"
)

type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

type WorkerRestarted struct {
	WorkerName string
	Panicked   bool
	Err        error
}

type QueueCapacity struct {
	QueueName string
	Capacity  int
	Length    int
	Dropped   uint64
}

type SpendStopped struct {
	Worker    int
	Attempts  int
	Successes int
	Err       error
}
