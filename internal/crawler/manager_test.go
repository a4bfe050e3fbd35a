package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/fetcher"
	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/parser"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type finishCall struct {
	status    types.SourceStatus
	lastError string
	delta     int64
}

type fakeStore struct {
	mu       sync.Mutex
	source   *types.Source
	markErr  error
	docErr   error
	existing map[string]bool
	docs     []*types.Document
	finish   *finishCall
	stats    *types.CrawlStats
}

func newFakeStore(src *types.Source) *fakeStore {
	return &fakeStore{source: src, existing: make(map[string]bool)}
}

func (f *fakeStore) GetSource(_ context.Context, id primitive.ObjectID) (*types.Source, error) {
	if f.source == nil || f.source.ID != id {
		return nil, fmt.Errorf("source %s: %w", id.Hex(), types.ErrNotFound)
	}
	src := *f.source
	return &src, nil
}

func (f *fakeStore) MarkSourceRunning(_ context.Context, _ primitive.ObjectID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.source.Status = types.StatusRunning
	return nil
}

func (f *fakeStore) FinishSource(_ context.Context, _ primitive.ObjectID, status types.SourceStatus, lastError string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finish = &finishCall{status: status, lastError: lastError, delta: delta}
	return nil
}

func (f *fakeStore) CreateDocument(_ context.Context, doc *types.Document) (primitive.ObjectID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil {
		return primitive.NilObjectID, false, f.docErr
	}
	key := doc.URL + "|" + doc.SourceID.Hex()
	if f.existing[key] {
		return primitive.NilObjectID, false, nil
	}
	f.existing[key] = true
	f.docs = append(f.docs, doc)
	return primitive.NewObjectID(), true, nil
}

func (f *fakeStore) SaveCrawlStats(_ context.Context, stats *types.CrawlStats) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = stats
	return primitive.NewObjectID(), nil
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*types.Response
	errs      map[string]error
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*types.Response),
		errs:      make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := req.URLString()
	f.calls = append(f.calls, u)
	if err, ok := f.errs[u]; ok {
		return nil, err
	}
	if resp, ok := f.responses[u]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("no response configured for %s", u)
}

func (f *fakeFetcher) CanFetch(context.Context, string) bool { return true }

func (f *fakeFetcher) Close() error { return nil }

func newTestManager(t *testing.T, store Store, f fetcher.Fetcher) (*Manager, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(testLogger)
	return NewManager(store, f, parser.DefaultRegistry(testLogger), metrics, testLogger), metrics
}

func newTestSource(rawURL string, ct types.ContentType) *types.Source {
	src := types.NewSource("test source", rawURL, types.SourceTypeWebsite, ct)
	src.ID = primitive.NewObjectID()
	// Keep the intra-run delay short for multi-page tests.
	src.CrawlConfig.RateLimitPerMinute = 300
	return src
}

func respWith(status int, body string) *types.Response {
	return &types.Response{StatusCode: status, Headers: http.Header{}, Body: []byte(body)}
}

func okResponse(body string) *types.Response {
	return respWith(http.StatusOK, body)
}

const articlePage = `<html lang="en"><head><title>Offshore Wind Expansion</title></head>
<body><article><h1>Offshore Wind Expansion</h1>
<p>The offshore wind farm adds turbine capacity to the coastal grid.
Each turbine feeds the grid through a new substation, and a third
turbine arrives next spring.</p></article></body></html>`

const archivePageOne = `<html><head><title>Archive Page One</title></head><body>
<article><p>Solar adoption rises across municipal rooftops this quarter.</p>
<a rel="next" href="https://site.test/archive/2">Older posts</a></article></body></html>`

const archivePageTwo = `<html><head><title>Archive Page Two</title></head><body>
<article><p>Battery storage pilots expand alongside the solar build-out.</p></article></body></html>`

const feedThreeItems = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Energy Briefs</title><link>https://feeds.test/energy</link>
<item><title>Grid upgrade approved</title><link>https://news.test/grid-upgrade</link><description>Regulators approved the grid upgrade plan.</description></item>
<item><title>Turbine order placed</title><link>https://news.test/turbine-order</link><description>A major turbine order was placed for the coast.</description></item>
<item><title>Storage tender opens</title><link>https://news.test/storage-tender</link><description>The storage tender opened for bids.</description></item>
</channel></rss>`

const redditHotListing = `{"data":{"children":[
{"data":{"id":"p1","title":"Heat pump rollout results","selftext":"District heat pumps cut costs this winter.","author":"user1","url":"https://reddit.test/p1","subreddit":"energy","score":41,"num_comments":5,"created_utc":1700000000}},
{"data":{"id":"p2","title":"Grid storage question","selftext":"","author":"user2","url":"https://reddit.test/p2","subreddit":"energy","score":12,"num_comments":3,"created_utc":1700000500}}
]}}`

// --- Crawl Run Tests ---

func TestCrawlSourceStoresDocument(t *testing.T) {
	src := newTestSource("https://site.test/article", types.ContentTypeHTML)
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses[src.URL] = okResponse(articlePage)
	m, _ := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if store.finish == nil {
		t.Fatal("FinishSource was not called")
	}
	if store.finish.status != types.StatusCompleted {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusCompleted)
	}
	if store.finish.lastError != "" {
		t.Errorf("finish lastError = %q, want empty", store.finish.lastError)
	}
	if store.finish.delta != 1 {
		t.Errorf("finish delta = %d, want 1", store.finish.delta)
	}

	if len(store.docs) != 1 {
		t.Fatalf("stored %d documents, want 1", len(store.docs))
	}
	doc := store.docs[0]
	if doc.URL != src.URL {
		t.Errorf("doc URL = %q, want %q", doc.URL, src.URL)
	}
	if doc.SourceID != src.ID {
		t.Errorf("doc SourceID = %s, want %s", doc.SourceID.Hex(), src.ID.Hex())
	}
	if doc.ContentType != types.ContentTypeHTML {
		t.Errorf("doc ContentType = %q, want html", doc.ContentType)
	}
	if !strings.Contains(doc.CleanedText, "turbine") {
		t.Errorf("doc CleanedText = %q, want it to contain %q", doc.CleanedText, "turbine")
	}
	if doc.Metadata.Title != "Offshore Wind Expansion" {
		t.Errorf("doc title = %q", doc.Metadata.Title)
	}
	if len(doc.Metadata.Keywords) == 0 {
		t.Error("doc has no keywords")
	}
	if !slices.Contains(doc.Metadata.Keywords, "turbine") {
		t.Errorf("keywords = %v, want them to include %q", doc.Metadata.Keywords, "turbine")
	}
	if doc.CrawlConfigSnapshot.MaxHits != src.CrawlConfig.MaxHits {
		t.Errorf("snapshot MaxHits = %d, want %d", doc.CrawlConfigSnapshot.MaxHits, src.CrawlConfig.MaxHits)
	}

	if stats.PagesCrawled != 1 {
		t.Errorf("stats.PagesCrawled = %d, want 1", stats.PagesCrawled)
	}
	if stats.PagesFailed != 0 {
		t.Errorf("stats.PagesFailed = %d, want 0", stats.PagesFailed)
	}
	if want := int64(len(articlePage)); stats.BytesDownloaded != want {
		t.Errorf("stats.BytesDownloaded = %d, want %d", stats.BytesDownloaded, want)
	}
	if stats.CompletedAt == nil {
		t.Error("stats.CompletedAt not set")
	}
	if store.stats == nil {
		t.Error("crawl stats were not saved")
	}
}

func TestCrawlSourceFollowsNextPage(t *testing.T) {
	src := newTestSource("https://site.test/archive/1", types.ContentTypeHTML)
	src.CrawlConfig.FollowLinks = true
	src.CrawlConfig.MaxDepth = 2
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses["https://site.test/archive/1"] = okResponse(archivePageOne)
	ft.responses["https://site.test/archive/2"] = okResponse(archivePageTwo)
	m, _ := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	want := []string{"https://site.test/archive/1", "https://site.test/archive/2"}
	if !slices.Equal(ft.calls, want) {
		t.Errorf("fetch calls = %v, want %v", ft.calls, want)
	}
	if len(store.docs) != 2 {
		t.Errorf("stored %d documents, want 2", len(store.docs))
	}
	if stats.PagesCrawled != 2 {
		t.Errorf("stats.PagesCrawled = %d, want 2", stats.PagesCrawled)
	}
}

func TestCrawlSourceHonorsMaxDepth(t *testing.T) {
	src := newTestSource("https://site.test/archive/1", types.ContentTypeHTML)
	src.CrawlConfig.FollowLinks = true
	src.CrawlConfig.MaxDepth = 1
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses["https://site.test/archive/1"] = okResponse(archivePageOne)
	m, _ := newTestManager(t, store, ft)

	if _, err := m.CrawlSource(context.Background(), src.ID); err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if len(ft.calls) != 1 {
		t.Errorf("fetch calls = %v, want only the entry page", ft.calls)
	}
	if len(store.docs) != 1 {
		t.Errorf("stored %d documents, want 1", len(store.docs))
	}
}

func TestCrawlSourceSkipsVisitedURLs(t *testing.T) {
	// The next link points back at the entry page with a trailing slash;
	// canonicalisation must recognise the revisit.
	const loopPage = `<html><head><title>Loop</title></head><body>
<article><p>Tidal pilot enters its second measurement phase.</p>
<a rel="next" href="https://site.test/loop/">More</a></article></body></html>`

	src := newTestSource("https://site.test/loop", types.ContentTypeHTML)
	src.CrawlConfig.FollowLinks = true
	src.CrawlConfig.MaxDepth = 3
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses[src.URL] = okResponse(loopPage)
	m, _ := newTestManager(t, store, ft)

	if _, err := m.CrawlSource(context.Background(), src.ID); err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if len(ft.calls) != 1 {
		t.Errorf("fetch calls = %v, want the loop page once", ft.calls)
	}
	if store.finish.status != types.StatusCompleted {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusCompleted)
	}
}

func TestCrawlSourceStopsAtMaxHits(t *testing.T) {
	src := newTestSource("https://feeds.test/energy", types.ContentTypeRSS)
	src.CrawlConfig.MaxHits = 2
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses[src.URL] = okResponse(feedThreeItems)
	m, _ := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if len(store.docs) != 2 {
		t.Errorf("stored %d documents, want 2 (max hits)", len(store.docs))
	}
	if store.finish.delta != 2 {
		t.Errorf("finish delta = %d, want 2", store.finish.delta)
	}
	if stats.PagesCrawled != 2 {
		t.Errorf("stats.PagesCrawled = %d, want 2", stats.PagesCrawled)
	}
}

func TestCrawlSourceBlockedRunKeepsEarlierPages(t *testing.T) {
	src := newTestSource("https://site.test/archive/1", types.ContentTypeHTML)
	src.CrawlConfig.FollowLinks = true
	src.CrawlConfig.MaxDepth = 3
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses["https://site.test/archive/1"] = okResponse(archivePageOne)
	ft.responses["https://site.test/archive/2"] = respWith(http.StatusTooManyRequests, "slow down")
	m, metrics := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v, blocked runs are not errors", err)
	}

	if store.finish.status != types.StatusBlocked {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusBlocked)
	}
	if want := "Blocked: HTTP_429_RATE_LIMIT"; store.finish.lastError != want {
		t.Errorf("finish lastError = %q, want %q", store.finish.lastError, want)
	}
	if store.finish.delta != 1 {
		t.Errorf("finish delta = %d, want the pre-block page kept", store.finish.delta)
	}
	if !slices.Contains(stats.Errors, "Blocked: HTTP_429_RATE_LIMIT") {
		t.Errorf("stats.Errors = %v, want the block recorded", stats.Errors)
	}
	if len(ft.calls) != 2 {
		t.Errorf("fetch calls = %v, want none after the blocked page", ft.calls)
	}
	if store.stats == nil {
		t.Error("crawl stats were not saved for the blocked run")
	}
	if got := metrics.Snapshot()["crawls_blocked"]; got != 1 {
		t.Errorf("crawls_blocked = %d, want 1", got)
	}
}

func TestCrawlSourceCAPTCHAPageBlocks(t *testing.T) {
	const challengePage = `<html><body><div class="g-recaptcha">Verify you are human to continue.</div></body></html>`

	src := newTestSource("https://site.test/wall", types.ContentTypeHTML)
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses[src.URL] = okResponse(challengePage)
	m, _ := newTestManager(t, store, ft)

	if _, err := m.CrawlSource(context.Background(), src.ID); err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if store.finish.status != types.StatusBlocked {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusBlocked)
	}
	if want := "Blocked: CAPTCHA"; store.finish.lastError != want {
		t.Errorf("finish lastError = %q, want %q", store.finish.lastError, want)
	}
	if len(store.docs) != 0 {
		t.Errorf("stored %d documents from a challenge page, want 0", len(store.docs))
	}
}

func TestCrawlSourceFetchFailureContinues(t *testing.T) {
	src := newTestSource("https://site.test/down", types.ContentTypeHTML)
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.errs[src.URL] = errors.New("connection refused")
	m, _ := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v, page failures are absorbed", err)
	}

	if store.finish.status != types.StatusCompleted {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusCompleted)
	}
	if store.finish.delta != 0 {
		t.Errorf("finish delta = %d, want 0", store.finish.delta)
	}
	if stats.PagesFailed != 1 {
		t.Errorf("stats.PagesFailed = %d, want 1", stats.PagesFailed)
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0], "connection refused") {
		t.Errorf("stats.Errors = %v, want the fetch error recorded", stats.Errors)
	}
}

func TestCrawlSourceNotFoundPageCountsAsFailure(t *testing.T) {
	src := newTestSource("https://site.test/gone", types.ContentTypeHTML)
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses[src.URL] = respWith(http.StatusNotFound, "page missing")
	m, _ := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if store.finish.status != types.StatusCompleted {
		t.Errorf("finish status = %q, want %q (404 is not a block)", store.finish.status, types.StatusCompleted)
	}
	if stats.PagesFailed != 1 {
		t.Errorf("stats.PagesFailed = %d, want 1", stats.PagesFailed)
	}
}

func TestCrawlSourceDuplicateDocumentsNotCounted(t *testing.T) {
	src := newTestSource("https://site.test/article", types.ContentTypeHTML)
	store := newFakeStore(src)
	store.existing[src.URL+"|"+src.ID.Hex()] = true
	ft := newFakeFetcher()
	ft.responses[src.URL] = okResponse(articlePage)
	m, metrics := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if store.finish.status != types.StatusCompleted {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusCompleted)
	}
	if store.finish.delta != 0 {
		t.Errorf("finish delta = %d, want 0 for a duplicate-only run", store.finish.delta)
	}
	if stats.PagesCrawled != 0 {
		t.Errorf("stats.PagesCrawled = %d, want 0", stats.PagesCrawled)
	}
	if len(store.docs) != 0 {
		t.Errorf("stored %d documents, want 0", len(store.docs))
	}
	if got := metrics.Snapshot()["duplicates_skipped"]; got != 1 {
		t.Errorf("duplicates_skipped = %d, want 1", got)
	}
}

func TestCrawlSourceUnknownSource(t *testing.T) {
	store := newFakeStore(nil)
	m, _ := newTestManager(t, store, newFakeFetcher())

	_, err := m.CrawlSource(context.Background(), primitive.NewObjectID())
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("CrawlSource() error = %v, want ErrNotFound", err)
	}
	if store.finish != nil {
		t.Error("FinishSource called for an unknown source")
	}
}

func TestCrawlSourceAlreadyRunning(t *testing.T) {
	src := newTestSource("https://site.test/busy", types.ContentTypeHTML)
	store := newFakeStore(src)
	store.markErr = fmt.Errorf("source %s: %w", src.ID.Hex(), types.ErrCrawlActive)
	ft := newFakeFetcher()
	m, _ := newTestManager(t, store, ft)

	_, err := m.CrawlSource(context.Background(), src.ID)
	if !errors.Is(err, types.ErrCrawlActive) {
		t.Errorf("CrawlSource() error = %v, want ErrCrawlActive", err)
	}
	if len(ft.calls) != 0 {
		t.Errorf("fetched %v despite an active run", ft.calls)
	}
	if store.finish != nil {
		t.Error("FinishSource called despite an active run")
	}
}

func TestCrawlSourceMissingParserFails(t *testing.T) {
	src := newTestSource("https://site.test/article", types.ContentTypeHTML)
	store := newFakeStore(src)
	metrics := observability.NewMetrics(testLogger)
	// Empty registry, so no content type resolves.
	m := NewManager(store, newFakeFetcher(), parser.NewRegistry(testLogger), metrics, testLogger)

	_, err := m.CrawlSource(context.Background(), src.ID)
	if err == nil || !strings.Contains(err.Error(), "no parser registered") {
		t.Fatalf("CrawlSource() error = %v, want missing-parser error", err)
	}

	if store.finish == nil || store.finish.status != types.StatusFailed {
		t.Fatalf("finish = %+v, want failed status", store.finish)
	}
	if !strings.Contains(store.finish.lastError, "no parser registered") {
		t.Errorf("finish lastError = %q", store.finish.lastError)
	}
	if store.stats == nil {
		t.Error("crawl stats were not saved for the failed run")
	}
}

func TestCrawlSourceCancelledContext(t *testing.T) {
	src := newTestSource("https://site.test/article", types.ContentTypeHTML)
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses[src.URL] = okResponse(articlePage)
	m, _ := newTestManager(t, store, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.CrawlSource(ctx, src.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("CrawlSource() error = %v, want context.Canceled", err)
	}
	if store.finish == nil || store.finish.status != types.StatusFailed {
		t.Fatalf("finish = %+v, want failed status recorded despite cancellation", store.finish)
	}
	if store.stats == nil {
		t.Error("crawl stats were not saved for the cancelled run")
	}
}

// --- Platform Crawl Tests ---

func TestCrawlSourcePlatformEndpointRewrite(t *testing.T) {
	src := newTestSource("https://www.reddit.com/r/energy", types.ContentTypeReddit)
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses["https://www.reddit.com/r/energy/hot.json"] = okResponse(redditHotListing)
	m, _ := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	want := []string{"https://www.reddit.com/r/energy/hot.json"}
	if !slices.Equal(ft.calls, want) {
		t.Errorf("fetch calls = %v, want %v", ft.calls, want)
	}
	if len(store.docs) != 2 {
		t.Fatalf("stored %d documents, want 2", len(store.docs))
	}
	for _, doc := range store.docs {
		if doc.ContentType != types.ContentTypeReddit {
			t.Errorf("doc ContentType = %q, want reddit", doc.ContentType)
		}
		if doc.Metadata.Custom["platform"] != "reddit" {
			t.Errorf("doc platform = %v, want reddit", doc.Metadata.Custom["platform"])
		}
	}
	if stats.PagesCrawled != 2 {
		t.Errorf("stats.PagesCrawled = %d, want 2", stats.PagesCrawled)
	}
	if store.finish.status != types.StatusCompleted {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusCompleted)
	}
}

func TestCrawlSourcePlatformRespectsMaxHits(t *testing.T) {
	src := newTestSource("https://www.reddit.com/r/energy", types.ContentTypeReddit)
	src.CrawlConfig.MaxHits = 1
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses["https://www.reddit.com/r/energy/hot.json"] = okResponse(redditHotListing)
	m, _ := newTestManager(t, store, ft)

	if _, err := m.CrawlSource(context.Background(), src.ID); err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if len(store.docs) != 1 {
		t.Errorf("stored %d documents, want 1", len(store.docs))
	}
	if store.docs[0].Metadata.Title != "Heat pump rollout results" {
		t.Errorf("kept doc = %q, want the first listing entry", store.docs[0].Metadata.Title)
	}
}

func TestCrawlSourcePlatformRateLimitIsNotBlocked(t *testing.T) {
	// Platform endpoints answer rate limiting as API errors; the source
	// must not be quarantined for them.
	src := newTestSource("https://www.reddit.com/r/energy", types.ContentTypeReddit)
	store := newFakeStore(src)
	ft := newFakeFetcher()
	ft.responses["https://www.reddit.com/r/energy/hot.json"] = respWith(http.StatusTooManyRequests, `{"error":429}`)
	m, _ := newTestManager(t, store, ft)

	stats, err := m.CrawlSource(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("CrawlSource() error = %v", err)
	}

	if store.finish.status != types.StatusCompleted {
		t.Errorf("finish status = %q, want %q", store.finish.status, types.StatusCompleted)
	}
	if stats.PagesFailed != 1 {
		t.Errorf("stats.PagesFailed = %d, want 1", stats.PagesFailed)
	}
}

// --- Canonical URL Tests ---

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/Path/", "https://example.com/Path"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/", "http://example.com/"},
		{"keeps explicit port", "https://example.com:8443/a", "https://example.com:8443/a"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"sorts query params", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"adds root path", "https://example.com", "https://example.com/"},
		{"trims trailing slash", "https://example.com/docs/", "https://example.com/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canonicalURL(tt.in); got != tt.want {
				t.Errorf("canonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalURLUnparseable(t *testing.T) {
	in := "http://bad host/with spaces"
	if got := canonicalURL(in); got != in {
		t.Errorf("canonicalURL(%q) = %q, want the input unchanged", in, got)
	}
}

func TestVisitedSetMatchesEquivalentURLs(t *testing.T) {
	v := make(visitedSet)
	v.add("https://example.com:443/docs/")

	if !v.seen("https://EXAMPLE.com/docs") {
		t.Error("equivalent URL not recognised as visited")
	}
	if v.seen("https://example.com/other") {
		t.Error("unrelated URL reported as visited")
	}
}

func BenchmarkCanonicalURL(b *testing.B) {
	for i := 0; i < b.N; i++ {
		canonicalURL("https://Example.com:443/articles/2024/?page=3&sort=new#top")
	}
}
