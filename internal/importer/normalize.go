package importer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Vatsal-Thapliyal/joblisting/internal/clients/feeds"
	"github.com/Vatsal-Thapliyal/joblisting/internal/entities"
)

// extractText pulls the textual value out of a loosely-typed feed field:
// the bare string itself, or the first string found under one of the
// wrapped-text keys, else empty.
func extractText(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range feeds.TextKeys {
			if s, ok := v[key].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// field returns the first non-empty text among the candidate keys. The
// wrapped-text fallback applies independently to each candidate.
func field(item feeds.Item, keys ...string) string {
	for _, key := range keys {
		value, ok := item[key]
		if !ok {
			continue
		}
		if s := extractText(value); s != "" {
			return s
		}
	}
	return ""
}

var postedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02",
}

func parsePostedDate(s string) *time.Time {
	for _, layout := range postedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Normalize converts one raw feed item into a canonical record draft; the
// caller fills in Source and ExternalJobID. An item whose title and url both
// come up empty is a *ValidationError, not a record with empty fields. The
// original item is always carried along verbatim as RawPayload.
func Normalize(item feeds.Item) (*entities.JobRecord, error) {

	raw, err := json.Marshal(item)
	if err != nil {
		return nil, &ValidationError{Reason: "item is not serializable: " + err.Error()}
	}

	record := &entities.JobRecord{
		Title:       field(item, "title"),
		Company:     field(item, "company", "author", "creator"),
		Location:    field(item, "location"),
		Description: field(item, "description", "summary", "content"),
		URL:         field(item, "url", "link"),
		Category:    field(item, "category"),
		JobType:     field(item, "jobType", "job_type", "type"),
		Region:      field(item, "region"),
		RawPayload:  string(raw),
	}

	if s := field(item, "pubDate", "published", "date"); s != "" {
		record.PostedDate = parsePostedDate(s)
	}

	if record.Title == "" && record.URL == "" {
		return nil, &ValidationError{Reason: "item has neither title nor url"}
	}

	return record, nil
}
