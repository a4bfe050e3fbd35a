// Package api exposes the store, scheduler and search engine over a JSON
// HTTP interface: project/source/document CRUD, search, manual crawl
// control, reports and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/config"
	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/scheduler"
	"github.com/sourcewatch/sourcewatch/internal/search"
	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Scheduler is the slice of the cron scheduler the API drives.
type Scheduler interface {
	AddSourceJob(ctx context.Context, id primitive.ObjectID) error
	RemoveSourceJob(id primitive.ObjectID) bool
	PauseSourceJob(ctx context.Context, id primitive.ObjectID) bool
	ResumeSourceJob(ctx context.Context, id primitive.ObjectID) bool
	TriggerSourceCrawl(id primitive.ObjectID) bool
	GetJobInfo(id primitive.ObjectID) *scheduler.JobInfo
	ListJobs() []*scheduler.JobInfo
}

// Server provides the REST API for external control of the crawler.
type Server struct {
	mux    *http.ServeMux
	srv    *http.Server
	host   string
	port   int
	logger *slog.Logger

	store     storage.Store
	scheduler Scheduler
	search    *search.Engine
	extractor *processing.Extractor
	metrics   *observability.Metrics
}

// NewServer wires the handlers. The keyword extractor used by the
// frequency report is created internally.
func NewServer(host string, port int, store storage.Store, sched Scheduler, engine *search.Engine, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		host:      host,
		port:      port,
		logger:    logger.With("component", "api_server"),
		store:     store,
		scheduler: sched,
		search:    engine,
		extractor: processing.NewExtractor(),
		metrics:   metrics,
	}

	s.registerRoutes()
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("API server stopping")
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	// Health and process stats
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleGlobalStats)
	s.mux.HandleFunc("GET /api/metrics", s.handleMetricsSnapshot)
	s.mux.Handle("GET /metrics", s.metrics)

	// Projects
	s.mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	s.mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	// Sources
	s.mux.HandleFunc("POST /api/sources", s.handleCreateSource)
	s.mux.HandleFunc("GET /api/sources", s.handleListSources)
	s.mux.HandleFunc("GET /api/sources/{id}", s.handleGetSource)
	s.mux.HandleFunc("PUT /api/sources/{id}", s.handleUpdateSource)
	s.mux.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource)
	s.mux.HandleFunc("GET /api/sources/{id}/stats", s.handleSourceStats)

	// Documents and search
	s.mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	s.mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)

	// Crawler control
	s.mux.HandleFunc("POST /api/crawler/start/{id}", s.handleStartCrawl)
	s.mux.HandleFunc("POST /api/crawler/stop/{id}", s.handleStopCrawl)
	s.mux.HandleFunc("POST /api/crawler/resume/{id}", s.handleResumeCrawl)
	s.mux.HandleFunc("GET /api/crawler/status/{id}", s.handleCrawlStatus)
	s.mux.HandleFunc("GET /api/crawler/stats", s.handleCrawlerStats)
	s.mux.HandleFunc("GET /api/crawler/jobs", s.handleListJobs)

	// Reports
	s.mux.HandleFunc("GET /api/reports/keyword-frequency", s.handleKeywordFrequency)
	s.mux.HandleFunc("GET /api/reports/source-summary", s.handleSourceSummary)
	s.mux.HandleFunc("GET /api/reports/crawl-timeline", s.handleCrawlTimeline)
	s.mux.HandleFunc("GET /api/reports/content-type-distribution", s.handleContentTypeDistribution)
	s.mux.HandleFunc("GET /api/reports/blocking-stats", s.handleBlockingStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetGlobalStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain errors onto wire status codes: unknown ids are
// 404, duplicate URLs 400, overlapping triggers 409, field violations 422
// and everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	switch {
	case errors.Is(err, types.ErrNotFound):
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrDuplicateURL):
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrCrawlActive):
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &verr):
		s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{"error": verr.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// pathID parses the {id} path segment as an object id.
func pathID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		return primitive.NilObjectID, &types.ValidationError{Field: "id", Msg: "must be a 24-character hex object id"}
	}
	return id, nil
}

// intParam reads an integer query parameter, returning def when absent and
// a validation error when malformed or out of [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, &types.ValidationError{Field: name, Msg: fmt.Sprintf("must be an integer between %d and %d", lo, hi)}
	}
	return n, nil
}

// idParam reads an optional object-id query parameter.
func idParam(r *http.Request, name string) (*primitive.ObjectID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, &types.ValidationError{Field: name, Msg: "must be a 24-character hex object id"}
	}
	return &id, nil
}

// timeParam reads an optional RFC 3339 timestamp query parameter.
func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &types.ValidationError{Field: name, Msg: "must be an RFC 3339 timestamp"}
	}
	return &t, nil
}
