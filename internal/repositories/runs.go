package repositories

import (
	"context"
	"time"

	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"gorm.io/gorm"
)

type Runs struct {
	db *gorm.DB
}

func NewRunsRepository(db *gorm.DB) *Runs {
	return &Runs{db: db}
}

func (repo *Runs) Create(ctx context.Context, sourceURL string) (*entities.ImportRun, error) {

	run := entities.ImportRun{
		SourceURL: sourceURL,
		Status:    entities.RunPending,
		StartedAt: time.Now(),
	}
	if err := repo.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// MarkProcessing records the fetched item count and moves the run out of
// pending once its batches are dispatched.
func (repo *Runs) MarkProcessing(ctx context.Context, runID uint, totalFetched int) error {
	return repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Where("id = ? AND status = ?", runID, entities.RunPending).
		Updates(map[string]any{
			"total_fetched": totalFetched,
			"status":        entities.RunProcessing,
		}).Error
}

// MarkFailed finishes the run with a fatal fetch/parse error. It only fires
// for an unfinished run, so a late failure cannot reopen a completed one.
func (repo *Runs) MarkFailed(ctx context.Context, runID uint, reason string) error {
	return repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Where("id = ? AND finished_at IS NULL", runID).
		Updates(map[string]any{
			"status":      entities.RunFailed,
			"error":       reason,
			"finished_at": time.Now(),
		}).Error
}

func (repo *Runs) AddCreated(ctx context.Context, runID uint) error {
	return repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Where("id = ?", runID).
		UpdateColumn("new_jobs", gorm.Expr("new_jobs + 1")).Error
}

func (repo *Runs) AddUpdated(ctx context.Context, runID uint) error {
	return repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Where("id = ?", runID).
		UpdateColumn("updated_jobs", gorm.Expr("updated_jobs + 1")).Error
}

// AddFailed appends one failed-item record and bumps the counter in the same
// transaction, keeping failed_jobs_count equal to the number of rows.
func (repo *Runs) AddFailed(ctx context.Context, runID uint, externalJobID string, reason string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		if err := tx.Create(&entities.FailedJob{
			ImportRunID:   runID,
			ExternalJobID: externalJobID,
			Reason:        reason,
			FailedAt:      time.Now(),
		}).Error; err != nil {
			return err
		}

		return tx.Model(&entities.ImportRun{}).
			Where("id = ?", runID).
			UpdateColumn("failed_jobs_count", gorm.Expr("failed_jobs_count + 1")).Error
	})
}

// FinalizeIfComplete completes the run once every fetched item has an
// outcome. The guard on finished_at makes it idempotent: of any number of
// concurrent callers exactly one observes true.
func (repo *Runs) FinalizeIfComplete(ctx context.Context, runID uint) (bool, error) {

	res := repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Where("id = ? AND status = ? AND finished_at IS NULL AND new_jobs + updated_jobs + failed_jobs_count >= total_fetched",
			runID, entities.RunProcessing).
		Updates(map[string]any{
			"status":      entities.RunCompleted,
			"finished_at": time.Now(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (repo *Runs) GetByID(ctx context.Context, runID uint) (*entities.ImportRun, error) {

	var run entities.ImportRun
	err := repo.db.WithContext(ctx).
		Preload("FailedJobs", func(db *gorm.DB) *gorm.DB { return db.Order("failed_jobs.id") }).
		First(&run, "id = ?", runID).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (repo *Runs) Get(ctx context.Context, limit int, offset int) ([]entities.ImportRun, error) {

	var runs []entities.ImportRun
	err := repo.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// GetStale returns unfinished runs that started before cutoff. These are
// runs abandoned by a crashed or restarted process; they are reported, never
// silently trusted.
func (repo *Runs) GetStale(ctx context.Context, cutoff time.Time) ([]entities.ImportRun, error) {

	var runs []entities.ImportRun
	err := repo.db.WithContext(ctx).
		Where("finished_at IS NULL AND started_at < ?", cutoff).
		Order("started_at").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

type RunStats struct {
	TotalRuns     int64
	CompletedRuns int64
	FailedRuns    int64
	TotalImported int64
	TotalFailed   int64
}

func (repo *Runs) Stats(ctx context.Context) (RunStats, error) {

	var stats RunStats
	db := repo.db.WithContext(ctx).Model(&entities.ImportRun{})

	if err := db.Count(&stats.TotalRuns).Error; err != nil {
		return stats, err
	}
	if err := repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Where("status = ?", entities.RunCompleted).Count(&stats.CompletedRuns).Error; err != nil {
		return stats, err
	}
	if err := repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Where("status = ?", entities.RunFailed).Count(&stats.FailedRuns).Error; err != nil {
		return stats, err
	}

	type sums struct {
		Imported int64
		Failed   int64
	}
	var s sums
	err := repo.db.WithContext(ctx).Model(&entities.ImportRun{}).
		Select("COALESCE(SUM(new_jobs + updated_jobs), 0) AS imported, COALESCE(SUM(failed_jobs_count), 0) AS failed").
		Scan(&s).Error
	if err != nil {
		return stats, err
	}

	stats.TotalImported = s.Imported
	stats.TotalFailed = s.Failed
	return stats, nil
}
