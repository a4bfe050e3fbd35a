package api

import (
	"net/http"

	"github.com/sourcewatch/sourcewatch/internal/storage"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string   `json:"name"`
		Domain      string   `json:"domain"`
		Keywords    []string `json:"keywords"`
		Description string   `json:"description"`
		Icon        string   `json:"icon"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}

	project := types.NewProject(body.Name, body.Domain)
	project.Keywords = body.Keywords
	project.Description = body.Description
	if body.Icon != "" {
		project.Icon = body.Icon
	}
	if err := project.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.store.CreateProject(r.Context(), project)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("project created", "project_id", id.Hex(), "name", project.Name)
	s.jsonResponse(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
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

	projects, err := s.store.ListProjects(r.Context(), int64(limit), int64(offset))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body struct {
		Name        *string   `json:"name"`
		Domain      *string   `json:"domain"`
		Keywords    *[]string `json:"keywords"`
		Description *string   `json:"description"`
		Icon        *string   `json:"icon"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if body.Name != nil {
		if err := (&types.Project{Name: *body.Name}).Validate(); err != nil {
			s.writeError(w, err)
			return
		}
	}

	upd := storage.ProjectUpdate{
		Name:        body.Name,
		Domain:      body.Domain,
		Keywords:    body.Keywords,
		Description: body.Description,
		Icon:        body.Icon,
	}
	if err := s.store.UpdateProject(r.Context(), id, upd); err != nil {
		s.writeError(w, err)
		return
	}

	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Unschedule the project's sources before the cascade removes them.
	sources, err := s.store.ListSources(r.Context(), storage.SourceFilter{ProjectID: &id})
	if err != nil {
		s.writeError(w, err)
		return
	}
	for _, src := range sources {
		s.scheduler.RemoveSourceJob(src.ID)
	}

	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("project deleted", "project_id", id.Hex(), "sources", len(sources))
	w.WriteHeader(http.StatusNoContent)
}
