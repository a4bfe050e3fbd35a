package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CrawlStats records the outcome of a single crawl run.
type CrawlStats struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	SourceID primitive.ObjectID `bson:"source_id" json:"source_id"`

	// PagesCrawled counts documents actually stored this run.
	PagesCrawled int `bson:"pages_crawled" json:"pages_crawled"`

	// PagesFailed counts fetch, parse and per-document storage failures.
	PagesFailed int `bson:"pages_failed" json:"pages_failed"`

	BytesDownloaded int64 `bson:"bytes_downloaded" json:"bytes_downloaded"`

	// DurationSeconds is the wall-clock run length, set on Finish.
	DurationSeconds float64 `bson:"duration_seconds" json:"duration_seconds"`

	StartedAt   time.Time  `bson:"started_at" json:"started_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	// Errors collects per-page error descriptions in occurrence order.
	Errors []string `bson:"errors,omitempty" json:"errors,omitempty"`
}

// NewCrawlStats starts a stats record stamped with the current time.
func NewCrawlStats(sourceID primitive.ObjectID) *CrawlStats {
	return &CrawlStats{
		SourceID:  sourceID,
		StartedAt: time.Now().UTC(),
	}
}

// AddError appends a per-page error description.
func (s *CrawlStats) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Finish stamps the completion time and derives the run duration.
func (s *CrawlStats) Finish() {
	now := time.Now().UTC()
	s.CompletedAt = &now
	s.DurationSeconds = now.Sub(s.StartedAt).Seconds()
}

// SourceCount pairs a source with its stored-document count.
type SourceCount struct {
	SourceID primitive.ObjectID `bson:"_id" json:"source_id"`
	Name     string             `bson:"name" json:"name"`
	Count    int64              `bson:"count" json:"count"`
}

// GlobalStats aggregates store-wide totals for reporting.
type GlobalStats struct {
	TotalProjects  int64 `json:"total_projects"`
	TotalSources   int64 `json:"total_sources"`
	TotalDocuments int64 `json:"total_documents"`

	// DocumentsByType maps content type to document count.
	DocumentsByType map[string]int64 `json:"documents_by_type"`

	// TopSources lists the ten sources with the most documents.
	TopSources []SourceCount `json:"top_sources"`
}
