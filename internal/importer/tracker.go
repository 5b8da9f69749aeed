package importer

import (
	"context"

	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"github.com/Vatsal-Thapliyal/joblisting/internal/events"
	"github.com/Vatsal-Thapliyal/joblisting/internal/logger"
	"github.com/Vatsal-Thapliyal/joblisting/internal/metrics"
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

type OutcomeKind string

const (
	OutcomeCreated OutcomeKind = "created"
	OutcomeUpdated OutcomeKind = "updated"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the result of importing one item.
type Outcome struct {
	Kind          OutcomeKind
	ExternalJobID string
	Reason        string
}

func Created() Outcome { return Outcome{Kind: OutcomeCreated} }
func Updated() Outcome { return Outcome{Kind: OutcomeUpdated} }

func Failed(externalJobID string, reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, ExternalJobID: externalJobID, Reason: reason}
}

type runRepository interface {
	Create(ctx context.Context, sourceURL string) (*entities.ImportRun, error)
	MarkProcessing(ctx context.Context, runID uint, totalFetched int) error
	MarkFailed(ctx context.Context, runID uint, reason string) error
	AddCreated(ctx context.Context, runID uint) error
	AddUpdated(ctx context.Context, runID uint) error
	AddFailed(ctx context.Context, runID uint, externalJobID string, reason string) error
	FinalizeIfComplete(ctx context.Context, runID uint) (bool, error)
	GetByID(ctx context.Context, runID uint) (*entities.ImportRun, error)
}

// RunTracker owns the lifecycle of import runs. Counters live on the
// persistent run row and are incremented atomically, so outcomes may arrive
// from any number of workers in any order.
type RunTracker struct {
	runs runRepository
	bus  EventBus.Bus
}

func NewRunTracker(runs runRepository, bus EventBus.Bus) *RunTracker {
	return &RunTracker{runs: runs, bus: bus}
}

// Begin allocates a pending run. Called before any network I/O for the
// source so even a fetch that never connects leaves an audit record.
func (t *RunTracker) Begin(ctx context.Context, sourceURL string) (*entities.ImportRun, error) {
	return t.runs.Create(ctx, sourceURL)
}

// RecordFetched stores the fetched item count and moves the run to
// processing. Must be called before the run's batches are dispatched.
func (t *RunTracker) RecordFetched(ctx context.Context, runID uint, totalFetched int) error {
	return t.runs.MarkProcessing(ctx, runID, totalFetched)
}

// Fail terminates the run with a fatal fetch or parse error.
func (t *RunTracker) Fail(ctx context.Context, runID uint, reason string) {
	if err := t.runs.MarkFailed(ctx, runID, reason); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to mark run %v as failed: %v", runID, err)
		return
	}
	t.publishFinished(ctx, runID)
}

// RecordOutcome registers one item outcome and finalizes the run if this
// was the last outstanding item. Safe to call concurrently.
func (t *RunTracker) RecordOutcome(ctx context.Context, runID uint, outcome Outcome) error {

	var err error
	switch outcome.Kind {
	case OutcomeCreated:
		err = t.runs.AddCreated(ctx, runID)
		metrics.ImportedJobsCounter.WithLabelValues("created").Inc()
	case OutcomeUpdated:
		err = t.runs.AddUpdated(ctx, runID)
		metrics.ImportedJobsCounter.WithLabelValues("updated").Inc()
	case OutcomeFailed:
		err = t.runs.AddFailed(ctx, runID, outcome.ExternalJobID, outcome.Reason)
		metrics.FailedItemsCounter.Inc()
	}
	if err != nil {
		return err
	}

	return t.FinalizeIfComplete(ctx, runID)
}

// FinalizeIfComplete completes the run once every fetched item has reported.
// Idempotent; of concurrent callers exactly one publishes the finish event.
func (t *RunTracker) FinalizeIfComplete(ctx context.Context, runID uint) error {

	finalized, err := t.runs.FinalizeIfComplete(ctx, runID)
	if err != nil {
		return err
	}
	if finalized {
		t.publishFinished(ctx, runID)
	}
	return nil
}

func (t *RunTracker) publishFinished(ctx context.Context, runID uint) {

	run, err := t.runs.GetByID(ctx, runID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to load finished run %v: %v", runID, err)
		return
	}

	t.bus.Publish(events.RunFinishedTopic, events.RunFinished{Run: *run})
}
