// Package queue provides the durable work queue the import pipeline
// dispatches batches through. The importer only depends on the Queue
// capability; backends are interchangeable.
package queue

import (
	"context"
	"time"
)

// Unit is one independently retryable piece of work: a batch of feed items
// belonging to a single import run.
type Unit struct {
	ID      string `json:"id"`
	RunID   uint   `json:"run_id"`
	Items   int    `json:"items"`
	Payload []byte `json:"payload"`

	// Attempt is the 1-based delivery attempt, set by the queue.
	Attempt int `json:"-"`
}

// Handler processes one delivered unit. A returned error requeues the unit
// until the attempt limit is reached, after which it is permanently failed.
type Handler func(ctx context.Context, unit Unit) error

type Stats struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
}

type Queue interface {
	// Submit enqueues units in bulk. Each unit succeeds, retries and fails
	// on its own schedule; no atomicity across units.
	Submit(ctx context.Context, units []Unit) error
	// Consume registers the handler and starts delivery. At most one worker
	// processes a given unit at a time.
	Consume(handler Handler) error
	Stats() Stats
	Stop()
}

type Options struct {
	Concurrency    int
	MaxAttempts    int
	Backoff        time.Duration // first retry delay, doubled per attempt
	ItemsPerSecond float32
}

func (o *Options) setDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
	if o.ItemsPerSecond <= 0 {
		o.ItemsPerSecond = 100
	}
}

// backoffDelay returns the delay before redelivering a unit that has just
// failed its attempt-th delivery: base, 2*base, 4*base, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
