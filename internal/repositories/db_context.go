package repositories

import (
	"fmt"

	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(connectionString string) (*DbContext, error) {
	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	// sqlite allows one writer at a time, and every pooled connection to
	// ":memory:" would get its own database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(entities.JobRecord{})
	if err != nil {
		return fmt.Errorf("failed to migrate JobRecord entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.ImportRun{})
	if err != nil {
		return fmt.Errorf("failed to migrate ImportRun entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.FailedJob{})
	if err != nil {
		return fmt.Errorf("failed to migrate FailedJob entity: %w", err)
	}

	// The compound unique index is what makes concurrent upserts safe.
	if err = c.DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_source_external_job_id ON job_records (source, external_job_id); " +
		"CREATE INDEX IF NOT EXISTS idx_failed_jobs_run ON failed_jobs (import_run_id);").
		Error; err != nil {
		return fmt.Errorf("failed to create job record index: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
