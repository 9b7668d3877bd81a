package httpapi

import (
	"net/http"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/store"
)

func (s *Server) registerRegistryRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/registry", withLimiter(s.readLimiter, s.handleListRegistry))
	mux.HandleFunc("GET /api/registry/{agentType}", withLimiter(s.readLimiter, s.handleGetRegistryEntry))
}

func (s *Server) handleListRegistry(w http.ResponseWriter, r *http.Request) {
	entries, err := s.stores.Registry.All(r.Context())
	if err != nil {
		writeError(w, apierror.Unavailable("list registry", err))
		return
	}
	category := r.URL.Query().Get("category")
	if category != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"registry": entries})
}

func (s *Server) handleGetRegistryEntry(w http.ResponseWriter, r *http.Request) {
	agentType := r.PathValue("agentType")
	entry, err := s.stores.Registry.Get(r.Context(), agentType)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, apierror.NotFound("no registry entry for agent type"))
			return
		}
		writeError(w, apierror.Unavailable("get registry entry", err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
