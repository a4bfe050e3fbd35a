// Package scheduler fires crawl runs from per-source cron schedules,
// prevents overlapping runs per source, and bounds cross-source
// parallelism with a worker pool.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

const jobPrefix = "crawl_"

// Crawler executes one run for a source.
type Crawler interface {
	CrawlSource(ctx context.Context, id primitive.ObjectID) (*types.CrawlStats, error)
}

// Store is the slice of the persistence layer the scheduler needs.
type Store interface {
	GetSource(ctx context.Context, id primitive.ObjectID) (*types.Source, error)
	ListSources(ctx context.Context, filter storage.SourceFilter) ([]*types.Source, error)
	UpdateSourceStatus(ctx context.Context, id primitive.ObjectID, status types.SourceStatus) error
}

// JobInfo describes one scheduled crawl job.
type JobInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// NextRunTime is nil for paused jobs and before the clock starts.
	NextRunTime *time.Time `json:"next_run_time,omitempty"`

	Trigger string `json:"trigger"`
}

// job is the scheduler's record of one source's schedule. Paused jobs keep
// their record but hold no live cron entry.
type job struct {
	entryID cron.EntryID
	name    string
	spec    string
	paused  bool
}

// Scheduler manages recurring and manual crawl jobs.
type Scheduler struct {
	store   Store
	crawler Crawler
	metrics *observability.Metrics
	logger  *slog.Logger

	cron       *cron.Cron
	cronParser cron.Parser

	jobs   map[string]*job
	jobsMu sync.RWMutex

	// active tracks source ids with a run in flight; checked before every
	// run and cleared in a deferred step.
	active   map[string]bool
	activeMu sync.Mutex

	// workers bounds concurrent runs across sources.
	workers chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler with a standard 5-field cron parser and a worker
// pool of maxWorkers.
func New(store Store, crawler Crawler, maxWorkers int, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	log := logger.With("component", "scheduler")
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:      store,
		crawler:    crawler,
		metrics:    metrics,
		logger:     log,
		cron:       cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cronLogger{log}))),
		cronParser: parser,
		jobs:       make(map[string]*job),
		active:     make(map[string]bool),
		workers:    make(chan struct{}, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "max_workers", cap(s.workers))
}

// Shutdown stops firing new jobs. With wait it blocks until in-flight runs
// finish; without it, in-flight runs are cancelled and record a failed
// outcome through the crawler's finalisation writes.
func (s *Scheduler) Shutdown(wait bool) {
	stopCtx := s.cron.Stop()
	if wait {
		<-stopCtx.Done()
		s.wg.Wait()
	}
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// AddSourceJob schedules recurring crawls for a source, replacing any
// existing schedule. Disabled sources are left unscheduled.
func (s *Scheduler) AddSourceJob(ctx context.Context, id primitive.ObjectID) error {
	source, err := s.store.GetSource(ctx, id)
	if err != nil {
		return err
	}
	if !source.CrawlConfig.Enabled {
		s.logger.Info("source disabled, not scheduling",
			"source_id", id.Hex(), "name", source.Name)
		return nil
	}

	spec := source.CrawlConfig.Frequency
	if _, err := s.cronParser.Parse(spec); err != nil {
		return fmt.Errorf("source %s: %w", id.Hex(),
			&types.ValidationError{Field: "crawl_config.frequency", Msg: err.Error()})
	}

	jobID := jobPrefix + id.Hex()
	sourceID := source.ID

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if existing, ok := s.jobs[jobID]; ok && !existing.paused {
		s.cron.Remove(existing.entryID)
	}

	entryID, err := s.cron.AddFunc(spec, func() { s.runJob(sourceID) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", jobID, err)
	}
	s.jobs[jobID] = &job{entryID: entryID, name: "Crawl: " + source.Name, spec: spec}

	s.logger.Info("crawl job scheduled",
		"job_id", jobID, "name", source.Name, "cron", spec)
	return nil
}

// RemoveSourceJob drops a source's schedule. Reports whether a job existed.
func (s *Scheduler) RemoveSourceJob(id primitive.ObjectID) bool {
	jobID := jobPrefix + id.Hex()

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	if !j.paused {
		s.cron.Remove(j.entryID)
	}
	delete(s.jobs, jobID)

	s.logger.Info("crawl job removed", "job_id", jobID)
	return true
}

// PauseSourceJob stops future fires for a source and marks it paused.
// In-flight runs are unaffected. Reports whether a job existed.
func (s *Scheduler) PauseSourceJob(ctx context.Context, id primitive.ObjectID) bool {
	jobID := jobPrefix + id.Hex()

	s.jobsMu.Lock()
	j, ok := s.jobs[jobID]
	if ok && !j.paused {
		s.cron.Remove(j.entryID)
		j.paused = true
	}
	s.jobsMu.Unlock()

	if !ok {
		s.logger.Warn("job not found", "job_id", jobID)
		return false
	}

	if err := s.store.UpdateSourceStatus(ctx, id, types.StatusPaused); err != nil {
		s.logger.Error("pause status write", "source_id", id.Hex(), "error", err)
	}
	s.logger.Info("crawl job paused", "job_id", jobID)
	return true
}

// ResumeSourceJob reinstates a paused schedule and marks the source idle.
// Reports whether a job existed.
func (s *Scheduler) ResumeSourceJob(ctx context.Context, id primitive.ObjectID) bool {
	jobID := jobPrefix + id.Hex()
	sourceID := id

	s.jobsMu.Lock()
	j, ok := s.jobs[jobID]
	if ok && j.paused {
		entryID, err := s.cron.AddFunc(j.spec, func() { s.runJob(sourceID) })
		if err != nil {
			s.jobsMu.Unlock()
			s.logger.Error("resume reschedule", "job_id", jobID, "error", err)
			return false
		}
		j.entryID = entryID
		j.paused = false
	}
	s.jobsMu.Unlock()

	if !ok {
		s.logger.Warn("job not found", "job_id", jobID)
		return false
	}

	if err := s.store.UpdateSourceStatus(ctx, id, types.StatusIdle); err != nil {
		s.logger.Error("resume status write", "source_id", id.Hex(), "error", err)
	}
	s.logger.Info("crawl job resumed", "job_id", jobID)
	return true
}

// TriggerSourceCrawl fires an immediate one-shot run. Refused when a run
// for the source is already in flight.
func (s *Scheduler) TriggerSourceCrawl(id primitive.ObjectID) bool {
	if s.isActive(id.Hex()) {
		s.logger.Warn("crawl already running", "source_id", id.Hex())
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(id)
	}()

	s.logger.Info("manual crawl triggered", "source_id", id.Hex())
	return true
}

// LoadAllSources schedules every enabled source, returning how many were
// scheduled.
func (s *Scheduler) LoadAllSources(ctx context.Context) (int, error) {
	enabled := true
	sources, err := s.store.ListSources(ctx, storage.SourceFilter{Enabled: &enabled})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, src := range sources {
		if err := s.AddSourceJob(ctx, src.ID); err != nil {
			s.logger.Error("schedule source",
				"source_id", src.ID.Hex(), "name", src.Name, "error", err)
			continue
		}
		count++
	}

	s.logger.Info("scheduled crawl jobs loaded", "count", count)
	return count, nil
}

// GetJobInfo returns the job for a source, or nil when it has none.
func (s *Scheduler) GetJobInfo(id primitive.ObjectID) *JobInfo {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	jobID := jobPrefix + id.Hex()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	return s.jobInfoLocked(jobID, j)
}

// ListJobs returns all scheduled jobs sorted by job id.
func (s *Scheduler) ListJobs() []*JobInfo {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	infos := make([]*JobInfo, 0, len(s.jobs))
	for jobID, j := range s.jobs {
		infos = append(infos, s.jobInfoLocked(jobID, j))
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].ID < infos[k].ID })
	return infos
}

// jobInfoLocked builds a JobInfo; callers hold jobsMu.
func (s *Scheduler) jobInfoLocked(jobID string, j *job) *JobInfo {
	info := &JobInfo{ID: jobID, Name: j.name, Trigger: "cron: " + j.spec}
	if !j.paused {
		if next := s.cron.Entry(j.entryID).Next; !next.IsZero() {
			info.NextRunTime = &next
		}
	}
	return info
}

// runJob executes one crawl with overlap and worker bounds applied. Both
// cron fires and manual triggers land here.
func (s *Scheduler) runJob(id primitive.ObjectID) {
	key := id.Hex()
	if !s.tryAcquire(key) {
		s.logger.Warn("crawl already in progress, skipping", "source_id", key)
		return
	}
	defer s.release(key)

	select {
	case s.workers <- struct{}{}:
	case <-s.ctx.Done():
		return
	}
	defer func() { <-s.workers }()

	s.metrics.ActiveCrawls.Add(1)
	defer s.metrics.ActiveCrawls.Add(-1)

	stats, err := s.crawler.CrawlSource(s.ctx, id)
	if err != nil {
		s.logger.Error("scheduled crawl failed", "source_id", key, "error", err)
		return
	}
	s.logger.Info("scheduled crawl finished",
		"source_id", key,
		"pages_crawled", stats.PagesCrawled,
		"pages_failed", stats.PagesFailed)
}

func (s *Scheduler) tryAcquire(key string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active[key] {
		return false
	}
	s.active[key] = true
	return true
}

func (s *Scheduler) release(key string) {
	s.activeMu.Lock()
	delete(s.active, key)
	s.activeMu.Unlock()
}

func (s *Scheduler) isActive(key string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.active[key]
}

// cronLogger adapts slog to the logger the cron recovery chain expects.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
