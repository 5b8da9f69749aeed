package importer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Vatsal-Thapliyal/joblisting/internal/clients/feeds"
	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"github.com/Vatsal-Thapliyal/joblisting/internal/logger"
	"github.com/Vatsal-Thapliyal/joblisting/internal/queue"
	log "github.com/sirupsen/logrus"
)

type jobRepository interface {
	Upsert(ctx context.Context, record *entities.JobRecord) (bool, error)
}

type outcomeRecorder interface {
	RecordOutcome(ctx context.Context, runID uint, outcome Outcome) error
}

// batchPayload is the wire form of one queued batch.
type batchPayload struct {
	Source string       `json:"source"`
	Items  []feeds.Item `json:"items"`
}

// Worker consumes dispatched batches and performs the dedup-safe upsert per
// item. Every item reports exactly one outcome, so the handler itself never
// returns an error for item-level problems.
type Worker struct {
	jobs         jobRepository
	tracker      outcomeRecorder
	maxAttempts  int
	retryBackoff time.Duration
}

func NewWorker(jobs jobRepository, tracker outcomeRecorder, maxAttempts int, retryBackoff time.Duration) *Worker {
	return &Worker{
		jobs:         jobs,
		tracker:      tracker,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
	}
}

func (w *Worker) Handle(ctx context.Context, unit queue.Unit) error {

	var payload batchPayload
	if err := json.Unmarshal(unit.Payload, &payload); err != nil {
		// The items cannot be identified, but the run still needs one
		// outcome per item to finish its accounting.
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("undecodable batch %v for run %v: %v", unit.ID, unit.RunID, err)
		for i := 0; i < unit.Items; i++ {
			w.recordOutcome(ctx, unit.RunID, Failed("", "undecodable batch payload: "+err.Error()))
		}
		return nil
	}

	for _, item := range payload.Items {
		w.processItem(ctx, unit.RunID, payload.Source, item)
	}
	return nil
}

func (w *Worker) processItem(ctx context.Context, runID uint, source string, item feeds.Item) {

	externalID, err := ResolveExternalID(item)
	if err != nil {
		w.recordOutcome(ctx, runID, Failed(rawIdentifier(item), err.Error()))
		return
	}

	record, err := Normalize(item)
	if err != nil {
		w.recordOutcome(ctx, runID, Failed(externalID, err.Error()))
		return
	}

	record.Source = source
	record.ExternalJobID = externalID

	created, err := w.upsertWithRetry(ctx, record)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("upsert of %v/%v failed after %v attempts: %v", source, externalID, w.maxAttempts, err)
		w.recordOutcome(ctx, runID, Failed(externalID, err.Error()))
		return
	}

	if created {
		w.recordOutcome(ctx, runID, Created())
	} else {
		w.recordOutcome(ctx, runID, Updated())
	}
}

// upsertWithRetry retries transient store errors up to the attempt limit
// with exponential backoff; the last error is what gets recorded.
func (w *Worker) upsertWithRetry(ctx context.Context, record *entities.JobRecord) (bool, error) {

	var created bool
	var err error

	delay := w.retryBackoff
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		created, err = w.jobs.Upsert(ctx, record)
		if err == nil {
			return created, nil
		}
		if attempt < w.maxAttempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false, err
			}
			delay *= 2
		}
	}
	return false, err
}

func (w *Worker) recordOutcome(ctx context.Context, runID uint, outcome Outcome) {
	if err := w.tracker.RecordOutcome(ctx, runID, outcome); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to record item outcome for run %v: %v", runID, err)
	}
}

// rawIdentifier gives a best-effort handle on an item whose external id
// could not be resolved, so the failure is still attributable.
func rawIdentifier(item feeds.Item) string {
	if title := field(item, "title"); title != "" {
		return title
	}
	return "unknown"
}
