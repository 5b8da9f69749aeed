package services

import (
	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"github.com/Vatsal-Thapliyal/joblisting/internal/events"
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

// RunReporter logs a summary line for every finished import run.
type RunReporter struct {
	bus EventBus.Bus
}

func NewRunReporter(bus EventBus.Bus) (*RunReporter, error) {

	r := &RunReporter{bus: bus}
	if err := bus.Subscribe(events.RunFinishedTopic, r.onRunFinished); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RunReporter) onRunFinished(event events.RunFinished) {

	run := event.Run
	if run.Status == entities.RunFailed {
		log.Warnf("run %v for %v failed: %v", run.ID, run.SourceURL, run.Error)
		return
	}

	log.Infof("run %v for %v completed: %v fetched, %v new, %v updated, %v failed",
		run.ID, run.SourceURL, run.TotalFetched, run.NewJobs, run.UpdatedJobs, run.FailedJobsCount)
}
