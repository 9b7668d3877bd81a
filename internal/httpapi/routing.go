package httpapi

import (
	"net/http"
	"strconv"

	"github.com/agentmemory/backend/internal/apierror"
)

func (s *Server) registerRoutingRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/routing/feedback", withLimiter(s.writeLimiter, s.handleRoutingFeedback))
	mux.HandleFunc("GET /api/routing/suggest", withLimiter(s.readLimiter, s.handleRoutingSuggest))
}

type routingFeedbackRequest struct {
	Keyword  string `json:"keyword"`
	ToolName string `json:"toolName"`
	ToolType string `json:"toolType"`
	Success  bool   `json:"success"`
}

func (s *Server) handleRoutingFeedback(w http.ResponseWriter, r *http.Request) {
	var req routingFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Keyword == "" || req.ToolName == "" {
		writeError(w, apierror.Validation("keyword and toolName are required"))
		return
	}
	if err := s.stores.Routing.Upsert(r.Context(), req.Keyword, req.ToolName, req.ToolType, req.Success); err != nil {
		writeError(w, apierror.Unavailable("record routing feedback", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoutingSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, apierror.Validation("q query param is required"))
		return
	}
	topK, _ := strconv.Atoi(r.URL.Query().Get("topK"))

	suggestions, err := s.routing.Suggest(r.Context(), q, topK)
	if err != nil {
		writeError(w, apierror.Unavailable("suggest routing", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
