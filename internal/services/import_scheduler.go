package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type importRunner interface {
	RunAll(ctx context.Context)
}

// ImportScheduler triggers the import pipeline on a cron schedule.
type ImportScheduler struct {
	runner importRunner
	cron   *cron.Cron
}

func NewImportScheduler(runner importRunner, schedule string) (*ImportScheduler, error) {

	if schedule == "" {
		return nil, errors.New("import schedule must not be empty")
	}

	s := &ImportScheduler{
		runner: runner,
		cron:   cron.New(),
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runner.RunAll(context.Background())
	})
	if err != nil {
		return nil, err
	}

	s.cron.Start()
	log.Infof("import scheduler started with schedule %q", schedule)
	return s, nil
}

func (s *ImportScheduler) Stop() {
	s.cron.Stop()
}
