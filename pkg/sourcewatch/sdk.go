// Package sourcewatch provides a public SDK for embedding the crawler as
// a library.
//
// Example usage:
//
//	client, err := sourcewatch.New(ctx,
//	    sourcewatch.WithMongoURI("mongodb://localhost:27017"),
//	    sourcewatch.WithUserAgent("mybot/1.0"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	src, err := client.AddSource(ctx, "Grid News", "https://news.example.com",
//	    types.SourceTypeWebsite, types.ContentTypeHTML,
//	    sourcewatch.WithFollowLinks(2),
//	    sourcewatch.WithMaxHits(50),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := client.Crawl(ctx, src.ID)
//	results, err := client.Search(ctx, "offshore turbine")
package sourcewatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/config"
	"github.com/sourcewatch/sourcewatch/internal/crawler"
	"github.com/sourcewatch/sourcewatch/internal/fetcher"
	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/parser"
	"github.com/sourcewatch/sourcewatch/internal/search"
	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Client is the high-level API for using the crawler as a library.
type Client struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.MongoStore
	fetcher *fetcher.HTTPFetcher
	crawler *crawler.Manager
	engine  *search.Engine
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*config.Config)

// WithMongoURI sets the document store connection string.
func WithMongoURI(uri string) Option {
	return func(c *config.Config) { c.MongoDBURI = uri }
}

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(c *config.Config) { c.MongoDBDatabase = name }
}

// WithUserAgent sets the User-Agent presented to servers and robots.txt.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) { c.CrawlerUserAgent = ua }
}

// WithCrawlDelay sets the default per-host pacing gap.
func WithCrawlDelay(d time.Duration) Option {
	return func(c *config.Config) { c.CrawlerDelay = d.Seconds() }
}

// WithRequestTimeout sets the default per-attempt HTTP timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config.Config) { c.RequestTimeout = int(d.Seconds()) }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.LogLevel = "debug" }
}

// SourceOption adjusts the crawl configuration of a source being added.
type SourceOption func(*types.CrawlConfig)

// WithFrequency sets the cron schedule (five fields).
func WithFrequency(spec string) SourceOption {
	return func(c *types.CrawlConfig) { c.Frequency = spec }
}

// WithMaxHits caps the documents stored per run.
func WithMaxHits(n int) SourceOption {
	return func(c *types.CrawlConfig) { c.MaxHits = n }
}

// WithFollowLinks enables next-page following down to maxDepth.
func WithFollowLinks(maxDepth int) SourceOption {
	return func(c *types.CrawlConfig) {
		c.FollowLinks = true
		c.MaxDepth = maxDepth
	}
}

// WithRateLimit spaces requests within a run.
func WithRateLimit(perMinute int) SourceOption {
	return func(c *types.CrawlConfig) { c.RateLimitPerMinute = perMinute }
}

// WithDisabled creates the source without scheduling eligibility.
func WithDisabled() SourceOption {
	return func(c *types.CrawlConfig) { c.Enabled = false }
}

// SearchOption narrows a search query.
type SearchOption func(*types.SearchQuery)

// WithOperatorOR matches documents containing any query term instead of
// all of them.
func WithOperatorOR() SearchOption {
	return func(q *types.SearchQuery) { q.Operator = types.OperatorOR }
}

// WithSource restricts results to one source.
func WithSource(id primitive.ObjectID) SearchOption {
	return func(q *types.SearchQuery) { q.SourceID = &id }
}

// WithContentType restricts results to one content type.
func WithContentType(ct types.ContentType) SearchOption {
	return func(q *types.SearchQuery) { q.ContentType = ct }
}

// WithTimeRange bounds results by crawl time.
func WithTimeRange(from, to time.Time) SearchOption {
	return func(q *types.SearchQuery) {
		q.From = &from
		q.To = &to
	}
}

// WithLimit caps the number of results (1-100).
func WithLimit(n int) SearchOption {
	return func(q *types.SearchQuery) { q.Limit = n }
}

// New connects to the document store and assembles a ready-to-use client.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := storage.NewMongoStore(cfg.MongoDBURI, cfg.MongoDBDatabase, logger)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	metrics := observability.NewMetrics(logger)
	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, metrics, logger)
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	return &Client{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		fetcher: httpFetcher,
		crawler: crawler.NewManager(store, httpFetcher, parser.DefaultRegistry(logger), metrics, logger),
		engine:  search.NewEngine(store, logger),
		metrics: metrics,
	}, nil
}

// AddProject creates a project grouping sources under a shared topic.
func (c *Client) AddProject(ctx context.Context, name, domain string) (*types.Project, error) {
	project := types.NewProject(name, domain)
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// AddSource registers a crawl source with default configuration adjusted
// by opts.
func (c *Client) AddSource(ctx context.Context, name, rawURL string, st types.SourceType, ct types.ContentType, opts ...SourceOption) (*types.Source, error) {
	src := types.NewSource(name, rawURL, st, ct)
	for _, opt := range opts {
		opt(&src.CrawlConfig)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// Source fetches one source by id.
func (c *Client) Source(ctx context.Context, id primitive.ObjectID) (*types.Source, error) {
	return c.store.GetSource(ctx, id)
}

// Sources lists all registered sources.
func (c *Client) Sources(ctx context.Context) ([]*types.Source, error) {
	return c.store.ListSources(ctx, storage.SourceFilter{})
}

// Crawl runs one synchronous crawl of the source and returns its run
// statistics.
func (c *Client) Crawl(ctx context.Context, id primitive.ObjectID) (*types.CrawlStats, error) {
	return c.crawler.CrawlSource(ctx, id)
}

// Search executes a keyword query and returns ranked results with
// snippets.
func (c *Client) Search(ctx context.Context, keywords string, opts ...SearchOption) ([]*types.SearchResult, error) {
	q := &types.SearchQuery{Keywords: keywords}
	for _, opt := range opts {
		opt(q)
	}
	results, err := c.engine.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	c.metrics.SearchQueries.Add(1)
	return results, nil
}

// Documents lists stored documents for a source, newest first.
func (c *Client) Documents(ctx context.Context, sourceID primitive.ObjectID, limit int64) ([]*types.Document, error) {
	return c.store.ListDocuments(ctx, storage.DocumentFilter{
		SourceID: &sourceID,
		Limit:    limit,
	})
}

// Stats returns store-wide totals.
func (c *Client) Stats(ctx context.Context) (*types.GlobalStats, error) {
	return c.store.GetGlobalStats(ctx)
}

// Metrics returns a snapshot of the process-wide crawl counters.
func (c *Client) Metrics() map[string]int64 {
	return c.metrics.Snapshot()
}

// Close releases the HTTP client and the store connection.
func (c *Client) Close(ctx context.Context) error {
	ferr := c.fetcher.Close()
	serr := c.store.Close(ctx)
	if ferr != nil {
		return ferr
	}
	return serr
}
