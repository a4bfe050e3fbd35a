package api

import (
	"net/http"
	"time"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

func (s *Server) handleStartCrawl(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	source, err := s.store.GetSource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if source.Status == types.StatusRunning {
		s.writeError(w, types.ErrCrawlActive)
		return
	}

	if !s.scheduler.TriggerSourceCrawl(id) {
		s.writeError(w, types.ErrCrawlActive)
		return
	}

	s.logger.Info("manual crawl triggered", "source_id", id.Hex())
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"message":   "Crawl started",
		"source_id": id.Hex(),
	})
}

func (s *Server) handleStopCrawl(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := s.store.GetSource(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	if s.scheduler.PauseSourceJob(r.Context(), id) {
		s.jsonResponse(w, http.StatusOK, map[string]string{
			"message":   "Crawl job paused",
			"source_id": id.Hex(),
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"message":   "No active job for source",
		"source_id": id.Hex(),
	})
}

func (s *Server) handleResumeCrawl(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := s.store.GetSource(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	if s.scheduler.ResumeSourceJob(r.Context(), id) {
		s.jsonResponse(w, http.StatusOK, map[string]string{
			"message":   "Crawl job resumed",
			"source_id": id.Hex(),
		})
		return
	}

	// Nothing to resume: the job was never registered (or was removed),
	// so schedule it fresh.
	if err := s.scheduler.AddSourceJob(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"message":   "Crawl job scheduled",
		"source_id": id.Hex(),
	})
}

func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	source, err := s.store.GetSource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var nextRun *time.Time
	info := s.scheduler.GetJobInfo(id)
	if info != nil {
		nextRun = info.NextRunTime
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"source_id":       id.Hex(),
		"status":          source.Status,
		"scheduled":       info != nil,
		"next_run_time":   nextRun,
		"last_crawl":      source.LastCrawl,
		"total_documents": source.TotalDocuments,
	})
}

func (s *Server) handleCrawlerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetGlobalStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"total_sources":   stats.TotalSources,
		"total_documents": stats.TotalDocuments,
		"active_crawls":   s.metrics.ActiveCrawls.Load(),
		"scheduled_jobs":  len(s.scheduler.ListJobs()),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.scheduler.ListJobs()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
