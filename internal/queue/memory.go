package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Memory is an in-process Queue with the same delivery contract as the
// external backends: bounded worker pool, at-least-once delivery, retries
// with exponential backoff and a sustained item-rate limit that is
// independent of worker concurrency.
type Memory struct {
	options Options
	handler Handler

	units   chan Unit
	limiter *rate.Limiter

	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	timers    sync.WaitGroup

	waiting   atomic.Int64
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func NewMemory(options Options) *Memory {

	options.setDefaults()

	burst := int(options.ItemsPerSecond)
	if burst < 1 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Memory{
		options: options,
		units:   make(chan Unit, 1024),
		limiter: rate.NewLimiter(rate.Limit(options.ItemsPerSecond), burst),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (q *Memory) Submit(ctx context.Context, units []Unit) error {
	for _, unit := range units {
		unit.Attempt = 1
		q.waiting.Add(1)
		select {
		case q.units <- unit:
		case <-ctx.Done():
			q.waiting.Add(-1)
			return ctx.Err()
		case <-q.ctx.Done():
			q.waiting.Add(-1)
			return errors.New("queue is stopped")
		}
	}
	return nil
}

func (q *Memory) Consume(handler Handler) error {
	if q.handler != nil {
		return errors.New("consumer already registered")
	}
	q.handler = handler

	for i := 0; i < q.options.Concurrency; i++ {
		q.waitGroup.Add(1)
		go q.work()
	}
	return nil
}

func (q *Memory) work() {
	defer q.waitGroup.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case unit := <-q.units:
			q.deliver(unit)
		}
	}
}

func (q *Memory) deliver(unit Unit) {

	q.waiting.Add(-1)
	q.active.Add(1)
	defer q.active.Add(-1)

	if err := q.waitForRate(unit.Items); err != nil {
		return // queue stopped
	}

	err := q.handler(q.ctx, unit)
	if err == nil {
		q.completed.Add(1)
		return
	}

	if unit.Attempt >= q.options.MaxAttempts {
		q.failed.Add(1)
		log.WithField("unit", unit.ID).Errorf("unit permanently failed after %v attempts: %v", unit.Attempt, err)
		return
	}

	delay := backoffDelay(q.options.Backoff, unit.Attempt)
	unit.Attempt++

	q.waiting.Add(1)
	q.timers.Add(1)
	time.AfterFunc(delay, func() {
		defer q.timers.Done()
		select {
		case q.units <- unit:
		case <-q.ctx.Done():
			q.waiting.Add(-1)
		}
	})
}

// waitForRate consumes n item tokens, in limiter-burst-sized chunks so a
// batch larger than the burst still passes through.
func (q *Memory) waitForRate(n int) error {
	burst := q.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := q.limiter.WaitN(q.ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func (q *Memory) Stats() Stats {
	return Stats{
		Waiting:   q.waiting.Load(),
		Active:    q.active.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
	}
}

func (q *Memory) Stop() {
	q.cancel()
	q.timers.Wait()
	q.waitGroup.Wait()
}
