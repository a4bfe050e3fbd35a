package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeCrawler struct {
	mu    sync.Mutex
	calls []primitive.ObjectID

	// started receives one value per run begun; block, when non-nil, holds
	// every run until closed.
	started chan struct{}
	block   chan struct{}

	err error
}

func (f *fakeCrawler) CrawlSource(_ context.Context, id primitive.ObjectID) (*types.CrawlStats, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	stats := types.NewCrawlStats(id)
	stats.PagesCrawled = 1
	stats.Finish()
	return stats, nil
}

func (f *fakeCrawler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSchedStore struct {
	mu       sync.Mutex
	sources  map[primitive.ObjectID]*types.Source
	statuses map[primitive.ObjectID]types.SourceStatus
}

func newFakeSchedStore(sources ...*types.Source) *fakeSchedStore {
	s := &fakeSchedStore{
		sources:  make(map[primitive.ObjectID]*types.Source),
		statuses: make(map[primitive.ObjectID]types.SourceStatus),
	}
	for _, src := range sources {
		s.sources[src.ID] = src
	}
	return s
}

func (f *fakeSchedStore) GetSource(_ context.Context, id primitive.ObjectID) (*types.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id.Hex(), types.ErrNotFound)
	}
	cp := *src
	return &cp, nil
}

func (f *fakeSchedStore) ListSources(_ context.Context, filter storage.SourceFilter) ([]*types.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Source
	for _, src := range f.sources {
		if filter.Enabled != nil && src.CrawlConfig.Enabled != *filter.Enabled {
			continue
		}
		cp := *src
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSchedStore) UpdateSourceStatus(_ context.Context, id primitive.ObjectID, status types.SourceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeSchedStore) statusOf(id primitive.ObjectID) types.SourceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

func newSchedSource(name string) *types.Source {
	src := types.NewSource(name, "https://"+name+".test/", types.SourceTypeWebsite, types.ContentTypeHTML)
	src.ID = primitive.NewObjectID()
	return src
}

func newTestScheduler(store Store, crawler Crawler, maxWorkers int) *Scheduler {
	return New(store, crawler, maxWorkers, observability.NewMetrics(testLogger), testLogger)
}

// --- Job Registration Tests ---

func TestAddSourceJobSchedules(t *testing.T) {
	src := newSchedSource("energy-news")
	store := newFakeSchedStore(src)
	s := newTestScheduler(store, &fakeCrawler{}, 2)
	defer s.Shutdown(false)

	if err := s.AddSourceJob(context.Background(), src.ID); err != nil {
		t.Fatalf("AddSourceJob() error = %v", err)
	}
	s.Start()

	info := s.GetJobInfo(src.ID)
	if info == nil {
		t.Fatal("GetJobInfo() = nil, want a job")
	}
	if want := jobPrefix + src.ID.Hex(); info.ID != want {
		t.Errorf("job ID = %q, want %q", info.ID, want)
	}
	if want := "Crawl: energy-news"; info.Name != want {
		t.Errorf("job Name = %q, want %q", info.Name, want)
	}
	if info.Trigger != "cron: 0 0 * * *" {
		t.Errorf("job Trigger = %q", info.Trigger)
	}
	if info.NextRunTime == nil {
		t.Error("NextRunTime = nil after Start")
	} else if !info.NextRunTime.After(time.Now()) {
		t.Errorf("NextRunTime = %v, want a future time", info.NextRunTime)
	}

	if jobs := s.ListJobs(); len(jobs) != 1 {
		t.Errorf("ListJobs() returned %d jobs, want 1", len(jobs))
	}
}

func TestAddSourceJobDisabledSource(t *testing.T) {
	src := newSchedSource("dormant")
	src.CrawlConfig.Enabled = false
	store := newFakeSchedStore(src)
	s := newTestScheduler(store, &fakeCrawler{}, 2)
	defer s.Shutdown(false)

	if err := s.AddSourceJob(context.Background(), src.ID); err != nil {
		t.Fatalf("AddSourceJob() error = %v, disabled sources are a no-op", err)
	}
	if info := s.GetJobInfo(src.ID); info != nil {
		t.Errorf("GetJobInfo() = %+v, want nil for a disabled source", info)
	}
}

func TestAddSourceJobInvalidCron(t *testing.T) {
	src := newSchedSource("badcron")
	src.CrawlConfig.Frequency = "61 0 * * *"
	store := newFakeSchedStore(src)
	s := newTestScheduler(store, &fakeCrawler{}, 2)
	defer s.Shutdown(false)

	err := s.AddSourceJob(context.Background(), src.ID)
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("AddSourceJob() error = %v, want ValidationError", err)
	}
	if verr.Field != "crawl_config.frequency" {
		t.Errorf("validation field = %q", verr.Field)
	}
}

func TestAddSourceJobUnknownSource(t *testing.T) {
	s := newTestScheduler(newFakeSchedStore(), &fakeCrawler{}, 2)
	defer s.Shutdown(false)

	err := s.AddSourceJob(context.Background(), primitive.NewObjectID())
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("AddSourceJob() error = %v, want ErrNotFound", err)
	}
}

func TestAddSourceJobReplacesExisting(t *testing.T) {
	src := newSchedSource("replaced")
	store := newFakeSchedStore(src)
	s := newTestScheduler(store, &fakeCrawler{}, 2)
	defer s.Shutdown(false)

	if err := s.AddSourceJob(context.Background(), src.ID); err != nil {
		t.Fatalf("AddSourceJob() error = %v", err)
	}

	store.mu.Lock()
	store.sources[src.ID].CrawlConfig.Frequency = "30 6 * * *"
	store.mu.Unlock()

	if err := s.AddSourceJob(context.Background(), src.ID); err != nil {
		t.Fatalf("AddSourceJob() second call error = %v", err)
	}

	jobs := s.ListJobs()
	if len(jobs) != 1 {
		t.Fatalf("ListJobs() returned %d jobs after replace, want 1", len(jobs))
	}
	if jobs[0].Trigger != "cron: 30 6 * * *" {
		t.Errorf("job Trigger = %q, want the replacement schedule", jobs[0].Trigger)
	}
}

func TestRemoveSourceJob(t *testing.T) {
	src := newSchedSource("removable")
	store := newFakeSchedStore(src)
	s := newTestScheduler(store, &fakeCrawler{}, 2)
	defer s.Shutdown(false)

	if err := s.AddSourceJob(context.Background(), src.ID); err != nil {
		t.Fatalf("AddSourceJob() error = %v", err)
	}

	if !s.RemoveSourceJob(src.ID) {
		t.Error("RemoveSourceJob() = false, want true for an existing job")
	}
	if info := s.GetJobInfo(src.ID); info != nil {
		t.Errorf("GetJobInfo() = %+v after removal, want nil", info)
	}
	if s.RemoveSourceJob(src.ID) {
		t.Error("RemoveSourceJob() = true for a missing job, want false")
	}
}

// --- Pause/Resume Tests ---

func TestPauseResumeLifecycle(t *testing.T) {
	src := newSchedSource("pausable")
	store := newFakeSchedStore(src)
	s := newTestScheduler(store, &fakeCrawler{}, 2)
	defer s.Shutdown(false)
	ctx := context.Background()

	if err := s.AddSourceJob(ctx, src.ID); err != nil {
		t.Fatalf("AddSourceJob() error = %v", err)
	}

	if !s.PauseSourceJob(ctx, src.ID) {
		t.Fatal("PauseSourceJob() = false, want true")
	}
	if got := store.statusOf(src.ID); got != types.StatusPaused {
		t.Errorf("status after pause = %q, want %q", got, types.StatusPaused)
	}
	info := s.GetJobInfo(src.ID)
	if info == nil {
		t.Fatal("GetJobInfo() = nil for a paused job, want the job record")
	}
	if info.NextRunTime != nil {
		t.Errorf("NextRunTime = %v for a paused job, want nil", info.NextRunTime)
	}

	// Pausing again is a no-op that still succeeds.
	if !s.PauseSourceJob(ctx, src.ID) {
		t.Error("second PauseSourceJob() = false, want true")
	}

	if !s.ResumeSourceJob(ctx, src.ID) {
		t.Fatal("ResumeSourceJob() = false, want true")
	}
	if got := store.statusOf(src.ID); got != types.StatusIdle {
		t.Errorf("status after resume = %q, want %q", got, types.StatusIdle)
	}
}

func TestPauseResumeMissingJob(t *testing.T) {
	s := newTestScheduler(newFakeSchedStore(), &fakeCrawler{}, 2)
	defer s.Shutdown(false)
	id := primitive.NewObjectID()

	if s.PauseSourceJob(context.Background(), id) {
		t.Error("PauseSourceJob() = true for a missing job, want false")
	}
	if s.ResumeSourceJob(context.Background(), id) {
		t.Error("ResumeSourceJob() = true for a missing job, want false")
	}
}

// --- Trigger and Overlap Tests ---

func TestTriggerSourceCrawlRejectsOverlap(t *testing.T) {
	src := newSchedSource("busy")
	store := newFakeSchedStore(src)
	crawler := &fakeCrawler{
		started: make(chan struct{}, 2),
		block:   make(chan struct{}),
	}
	s := newTestScheduler(store, crawler, 2)

	if !s.TriggerSourceCrawl(src.ID) {
		t.Fatal("first TriggerSourceCrawl() = false, want true")
	}
	<-crawler.started

	if s.TriggerSourceCrawl(src.ID) {
		t.Error("second TriggerSourceCrawl() = true while a run is in flight, want false")
	}

	close(crawler.block)
	s.Shutdown(true)

	if got := crawler.callCount(); got != 1 {
		t.Errorf("crawler ran %d times, want 1", got)
	}

	// With the run finished the source can be triggered again.
	if !s.TriggerSourceCrawl(src.ID) {
		t.Error("TriggerSourceCrawl() after completion = false, want true")
	}
	s.wg.Wait()
}

func TestWorkerPoolBoundsParallelism(t *testing.T) {
	srcA := newSchedSource("worker-a")
	srcB := newSchedSource("worker-b")
	store := newFakeSchedStore(srcA, srcB)
	crawler := &fakeCrawler{
		started: make(chan struct{}, 2),
		block:   make(chan struct{}),
	}
	s := newTestScheduler(store, crawler, 1)

	if !s.TriggerSourceCrawl(srcA.ID) {
		t.Fatal("trigger A = false")
	}
	if !s.TriggerSourceCrawl(srcB.ID) {
		t.Fatal("trigger B = false")
	}

	<-crawler.started
	// B holds on the single worker slot while A runs.
	select {
	case <-crawler.started:
		t.Fatal("second run started despite a full worker pool")
	case <-time.After(50 * time.Millisecond):
	}
	if got := crawler.callCount(); got != 1 {
		t.Fatalf("crawler ran %d times while the pool was full, want 1", got)
	}

	close(crawler.block)
	<-crawler.started
	s.Shutdown(true)

	if got := crawler.callCount(); got != 2 {
		t.Errorf("crawler ran %d times, want 2", got)
	}
}

// --- Startup Load Tests ---

func TestLoadAllSourcesSchedulesEnabledOnly(t *testing.T) {
	enabled1 := newSchedSource("load-a")
	enabled2 := newSchedSource("load-b")
	disabled := newSchedSource("load-c")
	disabled.CrawlConfig.Enabled = false
	store := newFakeSchedStore(enabled1, enabled2, disabled)
	s := newTestScheduler(store, &fakeCrawler{}, 2)
	defer s.Shutdown(false)

	count, err := s.LoadAllSources(context.Background())
	if err != nil {
		t.Fatalf("LoadAllSources() error = %v", err)
	}
	if count != 2 {
		t.Errorf("LoadAllSources() = %d, want 2", count)
	}
	if jobs := s.ListJobs(); len(jobs) != 2 {
		t.Errorf("ListJobs() returned %d jobs, want 2", len(jobs))
	}
	if s.GetJobInfo(disabled.ID) != nil {
		t.Error("disabled source acquired a job")
	}
}
