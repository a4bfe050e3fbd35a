package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsPath         = "/robots.txt"
	robotsCacheTTL     = 24 * time.Hour
	robotsFetchTimeout = 10 * time.Second
	maxRobotsBytes     = 512 * 1024
)

// robotsCache lazily fetches robots.txt per origin and caches the verdict,
// including the "could not retrieve, so allow everything" verdict.
type robotsCache struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	mu        sync.RWMutex
	entries   map[string]*robotsEntry // keyed by origin scheme://host[:port]
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

func newRobotsCache(client *http.Client, userAgent string, logger *slog.Logger) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		entries:   make(map[string]*robotsEntry),
	}
}

// Allowed reports whether the configured user agent may fetch rawURL.
// URLs that cannot be parsed are not fetchable at all, so they are
// disallowed.
func (rc *robotsCache) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	entry := rc.entry(ctx, u.Scheme+"://"+u.Host)
	if entry.allowAll {
		return true
	}
	return entry.data.TestAgent(u.RequestURI(), rc.userAgent)
}

func (rc *robotsCache) entry(ctx context.Context, origin string) *robotsEntry {
	rc.mu.RLock()
	entry, ok := rc.entries[origin]
	rc.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < robotsCacheTTL {
		return entry
	}

	entry = rc.fetch(ctx, origin)
	rc.mu.Lock()
	rc.entries[origin] = entry
	rc.mu.Unlock()
	return entry
}

// fetch retrieves and parses origin's robots.txt. Any failure, non-2xx
// status included, yields a permissive entry.
func (rc *robotsCache) fetch(ctx context.Context, origin string) *robotsEntry {
	permissive := &robotsEntry{fetchedAt: time.Now(), allowAll: true}

	ctx, cancel := context.WithTimeout(ctx, robotsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+robotsPath, http.NoBody)
	if err != nil {
		return permissive
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		rc.logger.Debug("robots.txt unreachable, allowing crawl", "origin", origin, "error", err)
		return permissive
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return permissive
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return permissive
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		rc.logger.Debug("robots.txt unparseable, allowing crawl", "origin", origin, "error", err)
		return permissive
	}

	rc.logger.Debug("robots.txt loaded", "origin", origin)
	return &robotsEntry{data: data, fetchedAt: time.Now()}
}
