package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string              `json:"name"`
		URL         string              `json:"url"`
		SourceType  types.SourceType    `json:"source_type"`
		ContentType types.ContentType   `json:"content_type"`
		ProjectID   *primitive.ObjectID `json:"project_id"`
		CrawlConfig *types.CrawlConfig  `json:"crawl_config"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}

	source := types.NewSource(body.Name, body.URL, body.SourceType, body.ContentType)
	source.ProjectID = body.ProjectID
	if body.CrawlConfig != nil {
		source.CrawlConfig = *body.CrawlConfig
	}
	if err := source.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.store.CreateSource(r.Context(), source)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Enabled sources go straight onto the cron schedule. A scheduling
	// failure leaves the source stored but unscheduled.
	if source.CrawlConfig.Enabled {
		if err := s.scheduler.AddSourceJob(r.Context(), id); err != nil {
			s.logger.Error("failed to schedule new source", "source_id", id.Hex(), "error", err)
		}
	}

	s.logger.Info("source created", "source_id", id.Hex(), "name", source.Name)
	s.jsonResponse(w, http.StatusCreated, source)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 100, 1, 1000)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<30)
	if err != nil {
		s.writeError(w, err)
		return
	}
	projectID, err := idParam(r, "project_id")
	if err != nil {
		s.writeError(w, err)
		return
	}

	filter := storage.SourceFilter{
		ProjectID: projectID,
		Limit:     int64(limit),
		Offset:    int64(offset),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := types.SourceStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, &types.ValidationError{Field: "enabled", Msg: "must be true or false"})
			return
		}
		filter.Enabled = &enabled
	}

	sources, err := s.store.ListSources(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sources)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
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
	s.jsonResponse(w, http.StatusOK, source)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body struct {
		Name        *string             `json:"name"`
		URL         *string             `json:"url"`
		SourceType  *types.SourceType   `json:"source_type"`
		ContentType *types.ContentType  `json:"content_type"`
		ProjectID   *primitive.ObjectID `json:"project_id"`
		CrawlConfig *types.CrawlConfig  `json:"crawl_config"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if err := validateSourceUpdate(body.Name, body.URL, body.SourceType, body.ContentType, body.CrawlConfig); err != nil {
		s.writeError(w, err)
		return
	}

	upd := storage.SourceUpdate{
		Name:        body.Name,
		URL:         body.URL,
		SourceType:  body.SourceType,
		ContentType: body.ContentType,
		ProjectID:   body.ProjectID,
		CrawlConfig: body.CrawlConfig,
	}
	if err := s.store.UpdateSource(r.Context(), id, upd); err != nil {
		s.writeError(w, err)
		return
	}

	// A crawl-config change re-registers the cron job so frequency or
	// enablement edits take effect without a restart.
	if body.CrawlConfig != nil {
		if body.CrawlConfig.Enabled {
			if err := s.scheduler.AddSourceJob(r.Context(), id); err != nil {
				s.logger.Error("failed to reschedule source", "source_id", id.Hex(), "error", err)
			}
		} else {
			s.scheduler.RemoveSourceJob(id)
		}
	}

	source, err := s.store.GetSource(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("source updated", "source_id", id.Hex())
	s.jsonResponse(w, http.StatusOK, source)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Unschedule before deleting so a cron fire cannot race the cascade.
	s.scheduler.RemoveSourceJob(id)

	if err := s.store.DeleteSource(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("source deleted", "source_id", id.Hex())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSourceStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	stats, err := s.store.GetSourceStats(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// validateSourceUpdate checks the provided fields of a partial update
// against the same bounds Source.Validate applies on create.
func validateSourceUpdate(name, rawURL *string, st *types.SourceType, ct *types.ContentType, cc *types.CrawlConfig) error {
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return &types.ValidationError{Field: "name", Msg: "must not be empty"}
		}
		if len(*name) > 200 {
			return &types.ValidationError{Field: "name", Msg: fmt.Sprintf("must be at most 200 characters, got %d", len(*name))}
		}
	}
	if rawURL != nil {
		u, err := url.Parse(*rawURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &types.ValidationError{Field: "url", Msg: fmt.Sprintf("%q is not an absolute URL", *rawURL)}
		}
	}
	if st != nil && !st.Valid() {
		return &types.ValidationError{Field: "source_type", Msg: fmt.Sprintf("unknown source type %q", *st)}
	}
	if ct != nil && !ct.Valid() {
		return &types.ValidationError{Field: "content_type", Msg: fmt.Sprintf("unknown content type %q", *ct)}
	}
	if cc != nil {
		return cc.Validate()
	}
	return nil
}
