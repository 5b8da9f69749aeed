package entities

import "time"

type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// ImportRun is the audit record of one pipeline execution for one feed.
type ImportRun struct {
	ID              uint `gorm:"primaryKey"`
	SourceURL       string
	Status          RunStatus
	StartedAt       time.Time
	FinishedAt      *time.Time
	TotalFetched    int
	NewJobs         int
	UpdatedJobs     int
	FailedJobsCount int
	Error           string
	FailedJobs      []FailedJob `gorm:"foreignKey:ImportRunID"`
}

func (r *ImportRun) TotalImported() int {
	return r.NewJobs + r.UpdatedJobs
}

// OutcomesComplete reports whether every fetched item has a recorded outcome.
func (r *ImportRun) OutcomesComplete() bool {
	return r.NewJobs+r.UpdatedJobs+r.FailedJobsCount >= r.TotalFetched
}

// FailedJob is one per-item failure inside a run, ordered by insertion.
type FailedJob struct {
	ID            uint `gorm:"primaryKey"`
	ImportRunID   uint
	ExternalJobID string // raw identifier when resolution itself failed
	Reason        string
	FailedAt      time.Time
}
