package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func testOptions() Options {
	return Options{
		Concurrency:    4,
		MaxAttempts:    3,
		Backoff:        time.Millisecond,
		ItemsPerSecond: 100000,
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func Test_Memory_ShouldDeliverEverySubmittedUnit(t *testing.T) {

	assert := assert.New(t)

	q := NewMemory(testOptions())
	defer q.Stop()

	var delivered sync.Map
	assert.NoError(q.Consume(func(ctx context.Context, unit Unit) error {
		delivered.Store(unit.ID, unit.Attempt)
		return nil
	}))

	units := []Unit{
		{ID: "a", RunID: 1, Items: 10},
		{ID: "b", RunID: 1, Items: 10},
		{ID: "c", RunID: 2, Items: 5},
	}
	assert.NoError(q.Submit(context.Background(), units))

	waitFor(t, func() bool { return q.Stats().Completed == 3 })

	for _, unit := range units {
		attempt, ok := delivered.Load(unit.ID)
		assert.True(ok)
		assert.Equal(1, attempt)
	}
}

func Test_Memory_ShouldRetryFailedUnitWithGrowingAttempt(t *testing.T) {

	assert := assert.New(t)

	q := NewMemory(testOptions())
	defer q.Stop()

	var mu sync.Mutex
	var attempts []int
	assert.NoError(q.Consume(func(ctx context.Context, unit Unit) error {
		mu.Lock()
		attempts = append(attempts, unit.Attempt)
		mu.Unlock()
		if unit.Attempt < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	assert.NoError(q.Submit(context.Background(), []Unit{{ID: "a", RunID: 1, Items: 1}}))

	waitFor(t, func() bool { return q.Stats().Completed == 1 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal([]int{1, 2, 3}, attempts)
	assert.Equal(int64(0), q.Stats().Failed)
}

func Test_Memory_ShouldFailPermanentlyAfterAttemptLimit(t *testing.T) {

	assert := assert.New(t)

	q := NewMemory(testOptions())
	defer q.Stop()

	var deliveries atomic.Int64
	assert.NoError(q.Consume(func(ctx context.Context, unit Unit) error {
		deliveries.Add(1)
		return errors.New("permanent")
	}))

	assert.NoError(q.Submit(context.Background(), []Unit{{ID: "a", RunID: 1, Items: 1}}))

	waitFor(t, func() bool { return q.Stats().Failed == 1 })

	assert.Equal(int64(3), deliveries.Load())
	assert.Equal(int64(0), q.Stats().Completed)
}

func Test_Memory_ShouldRejectSecondConsumer(t *testing.T) {

	q := NewMemory(testOptions())
	defer q.Stop()

	handler := func(ctx context.Context, unit Unit) error { return nil }
	assert.NoError(t, q.Consume(handler))
	assert.Error(t, q.Consume(handler))
}

func Test_Memory_WhenStopped_ShouldRejectSubmit(t *testing.T) {

	q := NewMemory(testOptions())
	assert.NoError(t, q.Consume(func(ctx context.Context, unit Unit) error { return nil }))
	q.Stop()

	err := q.Submit(context.Background(), []Unit{{ID: "a", RunID: 1, Items: 1}})
	assert.Error(t, err)
}

func Test_Memory_ShouldThrottleDeliveryByItemRate(t *testing.T) {

	assert := assert.New(t)

	options := testOptions()
	options.ItemsPerSecond = 100

	q := NewMemory(options)
	defer q.Stop()

	assert.NoError(q.Consume(func(ctx context.Context, unit Unit) error { return nil }))

	// First 100 items pass on the initial burst; the next 50 need ~500ms.
	units := []Unit{
		{ID: "a", RunID: 1, Items: 100},
		{ID: "b", RunID: 1, Items: 50},
	}

	start := time.Now()
	assert.NoError(q.Submit(context.Background(), units))
	waitFor(t, func() bool { return q.Stats().Completed == 2 })

	assert.GreaterOrEqual(time.Since(start), 400*time.Millisecond)
}

func Test_Memory_Stats_ShouldTrackQueueDepth(t *testing.T) {

	assert := assert.New(t)

	q := NewMemory(testOptions())

	// No consumer yet, so submitted units stay waiting.
	assert.NoError(q.Submit(context.Background(), []Unit{
		{ID: "a", RunID: 1, Items: 1},
		{ID: "b", RunID: 1, Items: 1},
	}))
	assert.Equal(int64(2), q.Stats().Waiting)

	assert.NoError(q.Consume(func(ctx context.Context, unit Unit) error { return nil }))
	waitFor(t, func() bool { return q.Stats().Completed == 2 })

	stats := q.Stats()
	assert.Equal(int64(0), stats.Waiting)
	assert.Equal(int64(0), stats.Active)

	q.Stop()
}

func Test_BackoffDelay_ShouldDoublePerAttempt(t *testing.T) {

	base := 2 * time.Second
	assert.Equal(t, 2*time.Second, backoffDelay(base, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(base, 2))
	assert.Equal(t, 8*time.Second, backoffDelay(base, 3))
}
