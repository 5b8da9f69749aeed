package importer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Vatsal-Thapliyal/joblisting/internal/clients/feeds"
	"github.com/Vatsal-Thapliyal/joblisting/internal/logger"
	"github.com/Vatsal-Thapliyal/joblisting/internal/metrics"
	"github.com/Vatsal-Thapliyal/joblisting/internal/queue"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type feedClient interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Service runs the fetch stage of the pipeline: one run per source, raw
// items batched and dispatched to the queue, workers reporting back through
// the tracker. Sources are isolated; one feed's failure never blocks or
// corrupts another's run.
type Service struct {
	client    feedClient
	tracker   *RunTracker
	queue     queue.Queue
	sources   []string
	batchSize int
}

func NewService(client feedClient, tracker *RunTracker, q queue.Queue, sources []string, batchSize int) *Service {
	return &Service{
		client:    client,
		tracker:   tracker,
		queue:     q,
		sources:   sources,
		batchSize: batchSize,
	}
}

// RunAll imports every configured source concurrently and returns once all
// fetch stages have finished dispatching. Worker-side processing continues
// asynchronously through the queue.
func (s *Service) RunAll(ctx context.Context) {

	startTime := time.Now()
	log.Infof("starting import for %v sources", len(s.sources))

	var wg sync.WaitGroup
	for _, source := range s.sources {
		wg.Add(1)
		go func(sourceURL string) {
			defer wg.Done()
			if err := s.runSource(ctx, sourceURL); err != nil {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeFeed).
					Errorf("import of %v failed: %v", sourceURL, err)
			}
		}(source)
	}
	wg.Wait()

	stats := s.queue.Stats()
	metrics.QueueWaiting.Set(float64(stats.Waiting))
	metrics.QueueActive.Set(float64(stats.Active))
	metrics.RunDuration.Observe(time.Since(startTime).Seconds())

	log.Infof("import dispatch finished after %v", time.Since(startTime))
}

func (s *Service) runSource(ctx context.Context, sourceURL string) error {

	run, err := s.tracker.Begin(ctx, sourceURL)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to create run for %v: %v", sourceURL, err)
		return err
	}

	data, err := s.client.Fetch(ctx, sourceURL)
	if err != nil {
		s.tracker.Fail(ctx, run.ID, err.Error())
		return err
	}

	items, err := feeds.Parse(data)
	if err != nil {
		s.tracker.Fail(ctx, run.ID, err.Error())
		return err
	}

	units, err := s.buildUnits(run.ID, sourceURL, items)
	if err != nil {
		s.tracker.Fail(ctx, run.ID, err.Error())
		return err
	}

	// Counters must be in place before the first worker can report back.
	if err = s.tracker.RecordFetched(ctx, run.ID, len(items)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to record fetched count for run %v: %v", run.ID, err)
		return err
	}

	if len(units) == 0 {
		return s.tracker.FinalizeIfComplete(ctx, run.ID)
	}

	if err = s.queue.Submit(ctx, units); err != nil {
		s.tracker.Fail(ctx, run.ID, "failed to dispatch batches: "+err.Error())
		return err
	}

	log.Infof("run %v: dispatched %v items in %v batches for %v", run.ID, len(items), len(units), sourceURL)
	return nil
}

func (s *Service) buildUnits(runID uint, sourceURL string, items []feeds.Item) ([]queue.Unit, error) {

	batches, err := SplitIntoBatches(items, s.batchSize)
	if err != nil {
		return nil, err
	}

	units := make([]queue.Unit, 0, len(batches))
	for _, batch := range batches {
		payload, err := json.Marshal(batchPayload{Source: sourceURL, Items: batch})
		if err != nil {
			return nil, err
		}
		units = append(units, queue.Unit{
			ID:      uuid.NewString(),
			RunID:   runID,
			Items:   len(batch),
			Payload: payload,
		})
	}
	return units, nil
}
