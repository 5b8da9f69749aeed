package repositories

import (
	"context"
	"time"

	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Jobs struct {
	db *gorm.DB
}

func NewJobsRepository(db *gorm.DB) *Jobs {
	return &Jobs{db: db}
}

// Upsert inserts record if no row with its (source, external_job_id) exists,
// otherwise updates every mutable field of the existing row. The insert is a
// single conditional write against the unique index, so racing workers
// cannot produce duplicates. Returns true when a new row was created.
func (repo *Jobs) Upsert(ctx context.Context, record *entities.JobRecord) (bool, error) {

	now := time.Now()
	record.ImportedAt = now
	record.LastUpdatedAt = now

	res := repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_job_id"}},
		DoNothing: true,
	}).Create(record)

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	err := repo.db.WithContext(ctx).Model(&entities.JobRecord{}).
		Where("source = ? AND external_job_id = ?", record.Source, record.ExternalJobID).
		Updates(map[string]any{
			"title":           record.Title,
			"company":         record.Company,
			"location":        record.Location,
			"description":     record.Description,
			"url":             record.URL,
			"category":        record.Category,
			"job_type":        record.JobType,
			"region":          record.Region,
			"posted_date":     record.PostedDate,
			"raw_payload":     record.RawPayload,
			"last_updated_at": now,
		}).Error

	return false, err
}

type JobFilter struct {
	Source   string
	Company  string
	Location string
	Category string
}

func (repo *Jobs) Get(ctx context.Context, filter JobFilter, limit int, offset int) ([]entities.JobRecord, error) {

	query := repo.db.WithContext(ctx).Model(&entities.JobRecord{})

	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Company != "" {
		query = query.Where("company = ?", filter.Company)
	}
	if filter.Location != "" {
		query = query.Where("location = ?", filter.Location)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var records []entities.JobRecord
	if err := query.Order("id").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (repo *Jobs) GetByKey(ctx context.Context, source string, externalJobID string) (*entities.JobRecord, error) {

	var record entities.JobRecord
	err := repo.db.WithContext(ctx).
		Where("source = ? AND external_job_id = ?", source, externalJobID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (repo *Jobs) Count(ctx context.Context) (int64, error) {

	var count int64
	if err := repo.db.WithContext(ctx).Model(&entities.JobRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
