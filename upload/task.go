package upload

import "time"

// Task is one pending object upload. Ownership transfers to the worker that
// dequeues it; no other goroutine touches a task after dequeue.
type Task struct {
	// Key is the object-store key the payload is written under.
	Key string

	// Payload is the raw object bytes.
	Payload []byte

	// EnqueuedAt is set by Enqueue.
	EnqueuedAt time.Time
}

// Result is the terminal outcome of one task: success, retries exhausted, or
// permanent failure.
type Result struct {
	// Key is the task's object key.
	Key string

	// Success reports whether the payload was durably written.
	Success bool

	// Attempts is the number of put attempts made, including the final one.
	Attempts int

	// Err holds the last failure, nil on success.
	Err error
}

// Stats is a point-in-time snapshot of pipeline state, used for status
// reporting.
type Stats struct {
	// QueueDepth is the number of tasks waiting in the queue.
	QueueDepth int

	// Pending counts tasks enqueued but without a terminal outcome yet,
	// including in-flight ones.
	Pending int

	// InFlight counts tasks currently owned by a worker.
	InFlight int

	// Workers is the fixed worker pool size.
	Workers int

	// Succeeded and Failed are cumulative terminal outcome counters.
	Succeeded int64
	Failed    int64
}
