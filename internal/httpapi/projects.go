package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/store"
)

func (s *Server) registerProjectRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects", withLimiter(s.writeLimiter, s.handleCreateProject))
	mux.HandleFunc("GET /api/projects", withLimiter(s.readLimiter, s.handleListProjects))
	mux.HandleFunc("GET /api/projects/{id}", withLimiter(s.readLimiter, s.handleGetProject))
	mux.HandleFunc("DELETE /api/projects/{id}", withLimiter(s.writeLimiter, s.handleDeleteProject))
}

type createProjectRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// handleCreateProject is idempotent on path: a second POST for the same
// path returns the existing project rather than conflicting.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" {
		writeError(w, apierror.Validation("path is required"))
		return
	}

	p, err := s.tracker.ResolveProject(r.Context(), req.Path, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	projects, err := s.stores.Projects.List(r.Context(), page)
	if err != nil {
		writeError(w, apierror.Unavailable("list projects", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid project id"))
		return
	}
	p, err := s.stores.Projects.Get(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, apierror.NotFound("project not found"))
			return
		}
		writeError(w, apierror.Unavailable("get project", err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid project id"))
		return
	}
	if err := s.stores.Projects.Delete(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, apierror.NotFound("project not found"))
			return
		}
		writeError(w, apierror.Unavailable("delete project", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pageFromQuery reads limit/offset query params, leaving defaulting to the
// store layer's PageOpts.Normalize.
func pageFromQuery(r *http.Request) store.PageOpts {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return store.PageOpts{Limit: limit, Offset: offset}.Normalize(50, 200)
}
