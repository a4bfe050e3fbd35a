package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SourceType categorizes where a source's content comes from.
type SourceType string

const (
	SourceTypeWebsite  SourceType = "website"
	SourceTypeBlog     SourceType = "blog"
	SourceTypeRSSFeed  SourceType = "rss_feed"
	SourceTypeDocument SourceType = "document"
	SourceTypeAPI      SourceType = "api"
	SourceTypeTwitter  SourceType = "twitter"
	SourceTypeReddit   SourceType = "reddit"
	SourceTypeYouTube  SourceType = "youtube"
	SourceTypeLinkedIn SourceType = "linkedin"
)

// Valid reports whether st is a recognized source type.
func (st SourceType) Valid() bool {
	switch st {
	case SourceTypeWebsite, SourceTypeBlog, SourceTypeRSSFeed, SourceTypeDocument,
		SourceTypeAPI, SourceTypeTwitter, SourceTypeReddit, SourceTypeYouTube, SourceTypeLinkedIn:
		return true
	}
	return false
}

// ContentType selects the parser used for a source's documents.
type ContentType string

const (
	ContentTypeHTML     ContentType = "html"
	ContentTypeRSS      ContentType = "rss"
	ContentTypePDF      ContentType = "pdf"
	ContentTypeTXT      ContentType = "txt"
	ContentTypeTwitter  ContentType = "twitter"
	ContentTypeReddit   ContentType = "reddit"
	ContentTypeYouTube  ContentType = "youtube"
	ContentTypeLinkedIn ContentType = "linkedin"
)

// Valid reports whether ct is a recognized content type.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTypeHTML, ContentTypeRSS, ContentTypePDF, ContentTypeTXT,
		ContentTypeTwitter, ContentTypeReddit, ContentTypeYouTube, ContentTypeLinkedIn:
		return true
	}
	return false
}

// Social reports whether ct is fetched through a single platform endpoint
// rather than the traditional page loop. LinkedIn sources scrape public
// HTML pages and stay on the page loop.
func (ct ContentType) Social() bool {
	switch ct {
	case ContentTypeTwitter, ContentTypeReddit, ContentTypeYouTube:
		return true
	}
	return false
}

// SourceStatus is the lifecycle state of a source.
type SourceStatus string

const (
	StatusIdle      SourceStatus = "idle"
	StatusRunning   SourceStatus = "running"
	StatusCompleted SourceStatus = "completed"
	StatusFailed    SourceStatus = "failed"
	StatusPaused    SourceStatus = "paused"
	StatusBlocked   SourceStatus = "blocked"
)

// RetryPolicy bounds the fetcher's retry behaviour for one source.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int `bson:"max_retries" json:"max_retries"`

	// BackoffFactor scales the exponential backoff between attempts:
	// sleep = BackoffFactor * 2^(attempt-1) seconds.
	BackoffFactor float64 `bson:"backoff_factor" json:"backoff_factor"`

	// Timeout is the per-attempt request timeout in seconds.
	Timeout int `bson:"timeout" json:"timeout"`
}

// CrawlConfig holds the per-source crawl parameters. It is embedded in a
// Source and snapshotted into every Document produced from it.
type CrawlConfig struct {
	// Frequency is a five-field cron expression (minute hour dom month dow).
	Frequency string `bson:"frequency" json:"frequency"`

	// MaxHits caps the number of documents stored per run.
	MaxHits int `bson:"max_hits" json:"max_hits"`

	// Enabled gates scheduling; disabled sources are never fired.
	Enabled bool `bson:"enabled" json:"enabled"`

	// FollowLinks allows the crawler to follow a detected "next page" link.
	FollowLinks bool `bson:"follow_links" json:"follow_links"`

	// MaxDepth bounds link following.
	MaxDepth int `bson:"max_depth" json:"max_depth"`

	// RateLimitPerMinute spaces requests within a run.
	RateLimitPerMinute int `bson:"rate_limit_per_minute" json:"rate_limit_per_minute"`

	RetryPolicy RetryPolicy `bson:"retry_policy" json:"retry_policy"`
}

// DefaultCrawlConfig returns the crawl parameters applied when a source is
// created without explicit configuration.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Frequency:          "0 0 * * *",
		MaxHits:            100,
		Enabled:            true,
		FollowLinks:        false,
		MaxDepth:           2,
		RateLimitPerMinute: 30,
		RetryPolicy: RetryPolicy{
			MaxRetries:    3,
			BackoffFactor: 2,
			Timeout:       30,
		},
	}
}

// Delay returns the intra-run pause between requests derived from the rate
// limit.
func (c CrawlConfig) Delay() time.Duration {
	if c.RateLimitPerMinute <= 0 {
		return 2 * time.Second
	}
	return time.Duration(float64(time.Minute) / float64(c.RateLimitPerMinute))
}

// Validate checks the crawl parameters against their allowed ranges.
func (c CrawlConfig) Validate() error {
	if fields := strings.Fields(c.Frequency); len(fields) != 5 {
		return &ValidationError{Field: "crawl_config.frequency", Msg: fmt.Sprintf("cron expression must have 5 fields, got %d", len(fields))}
	}
	if c.MaxHits < 1 || c.MaxHits > 10000 {
		return &ValidationError{Field: "crawl_config.max_hits", Msg: fmt.Sprintf("must be between 1 and 10000, got %d", c.MaxHits)}
	}
	if c.MaxDepth < 1 || c.MaxDepth > 5 {
		return &ValidationError{Field: "crawl_config.max_depth", Msg: fmt.Sprintf("must be between 1 and 5, got %d", c.MaxDepth)}
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitPerMinute > 300 {
		return &ValidationError{Field: "crawl_config.rate_limit_per_minute", Msg: fmt.Sprintf("must be between 1 and 300, got %d", c.RateLimitPerMinute)}
	}
	if c.RetryPolicy.MaxRetries < 0 {
		return &ValidationError{Field: "crawl_config.retry_policy.max_retries", Msg: "must be >= 0"}
	}
	if c.RetryPolicy.BackoffFactor < 0 {
		return &ValidationError{Field: "crawl_config.retry_policy.backoff_factor", Msg: "must be >= 0"}
	}
	if c.RetryPolicy.Timeout < 1 {
		return &ValidationError{Field: "crawl_config.retry_policy.timeout", Msg: "must be >= 1 second"}
	}
	return nil
}

// Source is a configured origin that documents are crawled from.
type Source struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// Name is the human-readable label, 1-200 characters.
	Name string `bson:"name" json:"name"`

	// URL is the crawl entry point; unique across all sources.
	URL string `bson:"url" json:"url"`

	// ProjectID optionally groups this source under a project.
	ProjectID *primitive.ObjectID `bson:"project_id,omitempty" json:"project_id,omitempty"`

	SourceType  SourceType  `bson:"source_type" json:"source_type"`
	ContentType ContentType `bson:"content_type" json:"content_type"`

	CrawlConfig CrawlConfig `bson:"crawl_config" json:"crawl_config"`

	Status SourceStatus `bson:"status" json:"status"`

	// LastCrawl is the start time of the most recent run.
	LastCrawl *time.Time `bson:"last_crawl,omitempty" json:"last_crawl,omitempty"`

	// LastError describes why the last run failed or was blocked; cleared
	// on a successful run.
	LastError string `bson:"last_error,omitempty" json:"last_error,omitempty"`

	// TotalDocuments is the running count of documents stored across runs.
	TotalDocuments int64 `bson:"total_documents" json:"total_documents"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewSource builds a source with default crawl configuration and idle status.
func NewSource(name, rawURL string, st SourceType, ct ContentType) *Source {
	now := time.Now().UTC()
	return &Source{
		Name:        name,
		URL:         rawURL,
		SourceType:  st,
		ContentType: ct,
		CrawlConfig: DefaultCrawlConfig(),
		Status:      StatusIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the source's fields and its embedded crawl configuration.
func (s *Source) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return &ValidationError{Field: "name", Msg: "must not be empty"}
	}
	if len(s.Name) > 200 {
		return &ValidationError{Field: "name", Msg: fmt.Sprintf("must be at most 200 characters, got %d", len(s.Name))}
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "url", Msg: fmt.Sprintf("%q is not an absolute URL", s.URL)}
	}
	if !s.SourceType.Valid() {
		return &ValidationError{Field: "source_type", Msg: fmt.Sprintf("unknown source type %q", s.SourceType)}
	}
	if !s.ContentType.Valid() {
		return &ValidationError{Field: "content_type", Msg: fmt.Sprintf("unknown content type %q", s.ContentType)}
	}
	return s.CrawlConfig.Validate()
}
