// Package crawler orchestrates single-source runs: fetching, blocking
// detection, parsing, keyword extraction, storage and run statistics.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/blocking"
	"github.com/sourcewatch/sourcewatch/internal/fetcher"
	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/parser"
	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// keywordsPerDocument is how many ranking terms each stored document gets.
const keywordsPerDocument = 10

// Store is the slice of the persistence layer a crawl run needs.
type Store interface {
	GetSource(ctx context.Context, id primitive.ObjectID) (*types.Source, error)
	MarkSourceRunning(ctx context.Context, id primitive.ObjectID) error
	FinishSource(ctx context.Context, id primitive.ObjectID, status types.SourceStatus, lastError string, docsDelta int64) error
	CreateDocument(ctx context.Context, doc *types.Document) (id primitive.ObjectID, stored bool, err error)
	SaveCrawlStats(ctx context.Context, stats *types.CrawlStats) (primitive.ObjectID, error)
}

// Manager executes crawl runs for individual sources.
type Manager struct {
	store     Store
	fetcher   fetcher.Fetcher
	parsers   *parser.Registry
	extractor *processing.Extractor
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewManager wires a crawl manager over the given collaborators.
func NewManager(store Store, f fetcher.Fetcher, parsers *parser.Registry, metrics *observability.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		fetcher:   f,
		parsers:   parsers,
		extractor: processing.NewExtractor(),
		metrics:   metrics,
		logger:    logger.With("component", "crawler"),
	}
}

// CrawlSource executes one complete run for the identified source and
// persists both the outcome transition and the run's statistics.
//
// The returned error covers run-level refusals only: unknown source,
// a run already in flight, a missing parser, or caller cancellation.
// Per-page fetch, parse and storage failures are absorbed into the stats
// and the run still completes. A blocked run is not an error either: the
// source transitions to blocked and the results collected before the
// block are kept.
func (m *Manager) CrawlSource(ctx context.Context, id primitive.ObjectID) (*types.CrawlStats, error) {
	source, err := m.store.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := types.NewCrawlStats(source.ID)
	if err := m.store.MarkSourceRunning(ctx, source.ID); err != nil {
		return nil, err
	}
	m.metrics.CrawlsStarted.Add(1)
	m.logger.Info("crawl started",
		"source_id", source.ID.Hex(),
		"name", source.Name,
		"url", source.URL,
		"content_type", source.ContentType)

	results, blockErr, runErr := m.collect(ctx, source, stats)

	var stored int64
	if runErr == nil {
		stored = m.storeResults(ctx, source, results, stats)
	}
	stats.Finish()

	status := types.StatusCompleted
	lastError := ""
	switch {
	case runErr != nil:
		status = types.StatusFailed
		lastError = runErr.Error()
		stats.AddError(lastError)
		m.metrics.CrawlsFailed.Add(1)
	case blockErr != nil:
		status = types.StatusBlocked
		lastError = "Blocked: " + blockErr.Reason
		m.metrics.CrawlsBlocked.Add(1)
	default:
		m.metrics.CrawlsCompleted.Add(1)
	}

	// Outcome writes must land even when the caller's context is gone:
	// a cancelled run that leaves its source stuck on running would shadow
	// the startup reconciliation sweep.
	finCtx := context.WithoutCancel(ctx)
	if err := m.store.FinishSource(finCtx, source.ID, status, lastError, stored); err != nil {
		m.logger.Error("finish source", "source_id", source.ID.Hex(), "error", err)
	}
	if _, err := m.store.SaveCrawlStats(finCtx, stats); err != nil {
		m.logger.Error("save crawl stats", "source_id", source.ID.Hex(), "error", err)
	}

	m.logger.Info("crawl finished",
		"source_id", source.ID.Hex(),
		"status", status,
		"stored", stored,
		"failed", stats.PagesFailed,
		"bytes", stats.BytesDownloaded,
		"duration_s", fmt.Sprintf("%.2f", stats.DurationSeconds))
	return stats, runErr
}

// collect gathers parse results for the source. Platform-backed content
// types resolve to a single endpoint fetch; everything else walks pages.
func (m *Manager) collect(ctx context.Context, source *types.Source, stats *types.CrawlStats) ([]*parser.Result, *types.BlockError, error) {
	p, ok := m.parsers.Get(source.ContentType)
	if !ok {
		return nil, nil, fmt.Errorf("no parser registered for content type %q", source.ContentType)
	}
	if source.ContentType.Social() {
		results, err := m.collectPlatform(ctx, source, p, stats)
		return results, nil, err
	}
	return m.collectPages(ctx, source, p, stats)
}

// collectPlatform performs the single fetch-and-parse cycle used for
// platform sources. Blocking detection does not apply here: platform
// endpoints answer rate limiting with plain API errors, which land in the
// stats as page failures.
func (m *Manager) collectPlatform(ctx context.Context, source *types.Source, p parser.Parser, stats *types.CrawlStats) ([]*parser.Result, error) {
	fetchURL := source.URL
	if rw, ok := p.(parser.URLRewriter); ok {
		fetchURL = rw.FetchURL(source.URL)
	}
	if fetchURL != source.URL {
		m.logger.Debug("platform endpoint resolved",
			"source_id", source.ID.Hex(), "url", source.URL, "endpoint", fetchURL)
	}

	resp, err := m.fetchPage(ctx, source, fetchURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.recordPageFailure(stats, fmt.Sprintf("%s: %v", fetchURL, err))
		return nil, nil
	}
	if !resp.IsSuccess() {
		m.recordPageFailure(stats, fmt.Sprintf("%s: status %d", fetchURL, resp.StatusCode))
		return nil, nil
	}

	stats.BytesDownloaded += int64(len(resp.Body))
	m.metrics.PagesFetched.Add(1)
	m.metrics.BytesDownloaded.Add(int64(len(resp.Body)))

	results, err := p.Parse(resp.Body, fetchURL)
	if err != nil {
		m.recordPageFailure(stats, fmt.Sprintf("%s: %v", fetchURL, err))
		return nil, nil
	}

	if len(results) > source.CrawlConfig.MaxHits {
		results = results[:source.CrawlConfig.MaxHits]
	}
	return results, nil
}

// collectPages walks the traditional fetch loop: entry URL first, then
// detected next-page links while the configuration allows. The walk stops
// as soon as enough results for the per-run cap have been parsed, when a
// response classifies as blocked, or when the frontier drains.
func (m *Manager) collectPages(ctx context.Context, source *types.Source, p parser.Parser, stats *types.CrawlStats) ([]*parser.Result, *types.BlockError, error) {
	type frontierEntry struct {
		url   string
		depth int
	}

	delay := source.CrawlConfig.Delay()
	maxHits := source.CrawlConfig.MaxHits
	maxDepth := source.CrawlConfig.MaxDepth

	queue := []frontierEntry{{url: source.URL, depth: 1}}
	visited := make(visitedSet)
	var results []*parser.Result

	for len(queue) > 0 && len(results) < maxHits {
		if err := ctx.Err(); err != nil {
			return results, nil, err
		}

		entry := queue[0]
		queue = queue[1:]
		if visited.seen(entry.url) {
			continue
		}
		visited.add(entry.url)

		resp, err := m.fetchPage(ctx, source, entry.url)
		if err != nil {
			if ctx.Err() != nil {
				return results, nil, ctx.Err()
			}
			m.recordPageFailure(stats, fmt.Sprintf("%s: %v", entry.url, err))
			continue
		}

		// Classify before the status check: 403/429/503 must surface as
		// blocks, not generic page failures.
		if det := blocking.DetectResponse(resp); det.Blocked {
			berr := det.Err()
			m.logger.Error("blocking detected",
				"source_id", source.ID.Hex(),
				"url", entry.url,
				"block_type", berr.Reason,
				"status", resp.StatusCode)
			stats.AddError("Blocked: " + berr.Reason)
			return results, berr, nil
		}

		if !resp.IsSuccess() {
			m.recordPageFailure(stats, fmt.Sprintf("%s: status %d", entry.url, resp.StatusCode))
			continue
		}

		parsed, err := p.Parse(resp.Body, entry.url)
		if err != nil {
			m.recordPageFailure(stats, fmt.Sprintf("%s: %v", entry.url, err))
			continue
		}

		stats.BytesDownloaded += int64(len(resp.Body))
		m.metrics.PagesFetched.Add(1)
		m.metrics.BytesDownloaded.Add(int64(len(resp.Body)))
		results = append(results, parsed...)

		if source.CrawlConfig.FollowLinks && entry.depth < maxDepth {
			for _, pr := range parsed {
				if pr.NextPage != "" && !visited.seen(pr.NextPage) {
					queue = append(queue, frontierEntry{url: pr.NextPage, depth: entry.depth + 1})
				}
			}
		}

		if delay > 0 && len(queue) > 0 && len(results) < maxHits {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return results, nil, ctx.Err()
			}
		}
	}
	return results, nil, nil
}

// storeResults converts parse results into documents and persists them,
// stopping at the per-run cap. It returns the number actually stored;
// duplicates and per-document storage failures do not count.
func (m *Manager) storeResults(ctx context.Context, source *types.Source, results []*parser.Result, stats *types.CrawlStats) int64 {
	if len(results) == 0 {
		return 0
	}

	corpus := make([]string, len(results))
	for i, r := range results {
		corpus[i] = r.CleanedText
	}

	var stored int64
	for _, r := range results {
		if int(stored) >= source.CrawlConfig.MaxHits {
			m.logger.Info("max hits reached",
				"source_id", source.ID.Hex(), "max_hits", source.CrawlConfig.MaxHits)
			break
		}

		meta := r.Metadata()
		meta.Keywords = m.extractor.Best(r.CleanedText, corpus, keywordsPerDocument)

		doc := &types.Document{
			URL:                 r.URL,
			SourceID:            source.ID,
			ContentType:         r.ContentType,
			RawContent:          r.RawContent,
			CleanedText:         r.CleanedText,
			Metadata:            meta,
			CrawlConfigSnapshot: source.CrawlConfig,
			CrawledAt:           time.Now().UTC(),
		}

		_, ok, err := m.store.CreateDocument(ctx, doc)
		if err != nil {
			m.recordPageFailure(stats, fmt.Sprintf("store %s: %v", r.URL, err))
			continue
		}
		if !ok {
			m.metrics.DuplicatesSkipped.Add(1)
			m.logger.Debug("duplicate document skipped",
				"source_id", source.ID.Hex(), "url", r.URL)
			continue
		}

		stored++
		stats.PagesCrawled++
		m.metrics.DocumentsStored.Add(1)
	}
	return stored
}

// fetchPage issues one fetch with the source's retry policy applied.
func (m *Manager) fetchPage(ctx context.Context, source *types.Source, rawURL string) (*types.Response, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}

	policy := source.CrawlConfig.RetryPolicy
	req.MaxRetries = policy.MaxRetries
	req.BackoffFactor = policy.BackoffFactor
	if policy.Timeout > 0 {
		req.Timeout = time.Duration(policy.Timeout) * time.Second
	}
	return m.fetcher.Fetch(ctx, req)
}

func (m *Manager) recordPageFailure(stats *types.CrawlStats, msg string) {
	stats.PagesFailed++
	stats.AddError(msg)
	m.metrics.PagesFailed.Add(1)
}
