package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/store"
)

func (s *Server) registerCapacityRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tokens/track", withLimiter(s.writeLimiter, s.handleTrackTokens))
	mux.HandleFunc("GET /api/capacity/{agentID}", withLimiter(s.readLimiter, s.handleGetCapacity))
}

type trackTokensRequest struct {
	AgentID      string    `json:"agentId"`
	SessionID    uuid.UUID `json:"sessionId"`
	ToolName     string    `json:"toolName"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
}

func (s *Server) handleTrackTokens(w http.ResponseWriter, r *http.Request) {
	var req trackTokensRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AgentID == "" {
		writeError(w, apierror.Validation("agentId is required"))
		return
	}
	if err := s.tracker.RecordTokens(r.Context(), req.AgentID, req.SessionID, req.ToolName, req.InputTokens, req.OutputTokens); err != nil {
		writeError(w, err)
		return
	}

	agg, err := s.capacity.Sample(r.Context(), req.AgentID)
	if err != nil {
		writeError(w, apierror.Unavailable("sample capacity", err))
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleGetCapacity(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	if agentID == "" {
		writeError(w, apierror.Validation("agent id is required"))
		return
	}
	agg, err := s.stores.Capacity.Get(r.Context(), agentID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, apierror.NotFound("no capacity data for agent"))
			return
		}
		writeError(w, apierror.Unavailable("get capacity", err))
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
