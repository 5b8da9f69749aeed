package entities

import "time"

// JobRecord is one posting in the catalog. The pair (Source, ExternalJobID)
// is unique; re-imports of the same pair update the existing row in place.
type JobRecord struct {
	ID            uint `gorm:"primaryKey"`
	Source        string
	ExternalJobID string
	Title         string
	Company       string
	Location      string
	Description   string
	URL           string
	Category      string
	JobType       string
	Region        string
	PostedDate    *time.Time
	RawPayload    string // original feed item as JSON, kept verbatim for replay
	ImportedAt    time.Time
	LastUpdatedAt time.Time
}
