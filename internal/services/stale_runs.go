package services

import (
	"context"
	"strconv"
	"time"

	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"github.com/Vatsal-Thapliyal/joblisting/internal/logger"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type staleRunRepository interface {
	GetStale(ctx context.Context, cutoff time.Time) ([]entities.ImportRun, error)
}

// StaleRunReporter periodically surfaces runs that never finished, e.g.
// after a process restart mid-run. It only reports; no recovery is attempted
// on data whose true state is unknown.
type StaleRunReporter struct {
	runs       staleRunRepository
	cron       *cron.Cron
	staleAfter time.Duration
	reported   *gocache.Cache
}

func NewStaleRunReporter(runs staleRunRepository, staleAfter time.Duration) (*StaleRunReporter, error) {

	if staleAfter <= 0 {
		return nil, errors.New("staleness window must be greater than zero")
	}

	r := &StaleRunReporter{
		runs:       runs,
		cron:       cron.New(),
		staleAfter: staleAfter,
		// suppress repeated reports of the same run for one full window
		reported: gocache.New(staleAfter, 2*staleAfter),
	}

	_, err := r.cron.AddFunc("*/10 * * * *", r.reportStaleRuns)
	if err != nil {
		return nil, err
	}

	r.cron.Start()
	log.Infof("stale run reporter started, staleness window: %v", staleAfter)
	return r, nil
}

func (r *StaleRunReporter) Stop() {
	r.cron.Stop()
}

func (r *StaleRunReporter) reportStaleRuns() {

	cutoff := time.Now().Add(-r.staleAfter)
	stale, err := r.runs.GetStale(context.Background(), cutoff)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to query stale runs: %v", err)
		return
	}

	for _, run := range stale {
		key := strconv.FormatUint(uint64(run.ID), 10)
		if _, alreadyReported := r.reported.Get(key); alreadyReported {
			continue
		}
		log.Warnf("run %v for %v is stale: started %v, still %v",
			run.ID, run.SourceURL, run.StartedAt, run.Status)
		_ = r.reported.Add(key, struct{}{}, gocache.DefaultExpiration)
	}
}
