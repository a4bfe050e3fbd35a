// Package storage persists projects, sources, documents and crawl-run
// statistics, and answers full-text search queries against the document
// index.
package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

// SourceFilter narrows ListSources. Nil fields match everything.
type SourceFilter struct {
	Status    *types.SourceStatus
	ProjectID *primitive.ObjectID

	// Enabled filters on crawl_config.enabled when set.
	Enabled *bool

	Limit  int64
	Offset int64
}

// DocumentFilter narrows ListDocuments. Nil/zero fields match everything.
type DocumentFilter struct {
	SourceID    *primitive.ObjectID
	ContentType types.ContentType

	Limit  int64
	Offset int64
}

// ProjectUpdate carries the mutable project fields; nil fields are left
// unchanged.
type ProjectUpdate struct {
	Name        *string
	Domain      *string
	Keywords    *[]string
	Description *string
	Icon        *string
}

// SourceUpdate carries the mutable source fields; nil fields are left
// unchanged. Status transitions go through the dedicated status methods.
type SourceUpdate struct {
	Name        *string
	URL         *string
	SourceType  *types.SourceType
	ContentType *types.ContentType
	CrawlConfig *types.CrawlConfig
	ProjectID   *primitive.ObjectID
}

// SourceStats summarises one source's crawl history.
type SourceStats struct {
	SourceID       primitive.ObjectID `json:"source_id"`
	TotalDocuments int64              `json:"total_documents"`

	// LatestRun is the most recent crawl-stats record, nil when the
	// source has never run.
	LatestRun *types.CrawlStats `json:"latest_run,omitempty"`
}

// TimelineBucket aggregates one day of crawl activity.
type TimelineBucket struct {
	Date            string `bson:"_id" json:"date"`
	Runs            int64  `bson:"runs" json:"runs"`
	PagesCrawled    int64  `bson:"pages_crawled" json:"pages_crawled"`
	PagesFailed     int64  `bson:"pages_failed" json:"pages_failed"`
	BytesDownloaded int64  `bson:"bytes_downloaded" json:"bytes_downloaded"`
}

// Store is the persistence interface the crawler, scheduler and API are
// built against.
type Store interface {
	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// EnsureIndexes creates the unique, sort and full-text indexes.
	EnsureIndexes(ctx context.Context) error

	// Close releases the database connection.
	Close(ctx context.Context) error

	CreateProject(ctx context.Context, p *types.Project) (primitive.ObjectID, error)
	GetProject(ctx context.Context, id primitive.ObjectID) (*types.Project, error)
	ListProjects(ctx context.Context, limit, offset int64) ([]*types.Project, error)
	UpdateProject(ctx context.Context, id primitive.ObjectID, upd ProjectUpdate) error

	// DeleteProject removes the project and cascades to its sources,
	// their documents and their crawl stats.
	DeleteProject(ctx context.Context, id primitive.ObjectID) error

	// CreateSource inserts a source; a URL collision reports
	// ErrDuplicateURL.
	CreateSource(ctx context.Context, src *types.Source) (primitive.ObjectID, error)
	GetSource(ctx context.Context, id primitive.ObjectID) (*types.Source, error)
	ListSources(ctx context.Context, f SourceFilter) ([]*types.Source, error)
	UpdateSource(ctx context.Context, id primitive.ObjectID, upd SourceUpdate) error

	// DeleteSource removes the source and cascades to its documents and
	// crawl stats.
	DeleteSource(ctx context.Context, id primitive.ObjectID) error

	// UpdateSourceStatus writes the status unconditionally, leaving
	// last_error untouched. Run outcomes go through FinishSource.
	UpdateSourceStatus(ctx context.Context, id primitive.ObjectID, status types.SourceStatus) error

	// MarkSourceRunning transitions to running and stamps last_crawl,
	// guarded so a source already running reports ErrCrawlActive.
	MarkSourceRunning(ctx context.Context, id primitive.ObjectID) error

	// FinishSource transitions a running source to its final status and
	// adds docsDelta to total_documents.
	FinishSource(ctx context.Context, id primitive.ObjectID, status types.SourceStatus, lastError string, docsDelta int64) error

	// ReconcileStaleRunning marks sources stuck in running as failed.
	// Meant for startup, when no run can legitimately be in flight.
	ReconcileStaleRunning(ctx context.Context) (int64, error)

	SourceStatusCounts(ctx context.Context) (map[types.SourceStatus]int64, error)

	// CreateDocument inserts a document. A (url, source_id) duplicate is
	// not an error: it reports stored=false with a zero id.
	CreateDocument(ctx context.Context, doc *types.Document) (id primitive.ObjectID, stored bool, err error)
	GetDocument(ctx context.Context, id primitive.ObjectID) (*types.Document, error)
	ListDocuments(ctx context.Context, f DocumentFilter) ([]*types.Document, error)
	CountDocuments(ctx context.Context, sourceID *primitive.ObjectID) (int64, error)

	// SearchDocuments runs the query against the full-text index and
	// returns score-ranked results. Snippets are filled in by the search
	// engine, not here.
	SearchDocuments(ctx context.Context, q *types.SearchQuery) ([]*types.SearchResult, error)

	SaveCrawlStats(ctx context.Context, stats *types.CrawlStats) (primitive.ObjectID, error)
	GetSourceStats(ctx context.Context, sourceID primitive.ObjectID) (*SourceStats, error)
	GetGlobalStats(ctx context.Context) (*types.GlobalStats, error)

	// CrawlTimeline buckets the last days of crawl runs by calendar day.
	CrawlTimeline(ctx context.Context, days int) ([]TimelineBucket, error)
}
