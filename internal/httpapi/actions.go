package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/tracking"
)

func (s *Server) registerActionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/actions", withLimiter(s.writeLimiter, s.handleCreateAction))
	mux.HandleFunc("GET /api/actions", withLimiter(s.readLimiter, s.handleListActions))
}

type createActionRequest struct {
	SubtaskID  *uuid.UUID `json:"subtaskId,omitempty"`
	SessionID  uuid.UUID  `json:"sessionId"`
	AgentID    string     `json:"agentId,omitempty"`
	ToolName   string     `json:"toolName"`
	ToolType   string     `json:"toolType"`
	InputHead  string     `json:"inputHead"`
	ExitCode   int        `json:"exitCode"`
	DurationMS int64      `json:"durationMs"`
	FilePaths  []string   `json:"filePaths,omitempty"`
}

// handleCreateAction is the fire-and-forget ingestion path hooks post to
// after every tool call; it never returns an error status for a dropped
// action, only a 4xx for a malformed request, since action telemetry is
// allowed to be lost under saturation.
func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req createActionRequest
	if err := decodeValidated(r, s.schemas.actionCreate, &req); err != nil {
		writeError(w, err)
		return
	}

	s.tracker.Record(r.Context(), tracking.RecordInput{
		SubtaskID:  req.SubtaskID,
		SessionID:  req.SessionID,
		AgentID:    req.AgentID,
		ToolName:   req.ToolName,
		ToolType:   req.ToolType,
		InputHead:  req.InputHead,
		ExitCode:   req.ExitCode,
		DurationMS: req.DurationMS,
		FilePaths:  req.FilePaths,
	})

	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageFromQuery(r)

	if v := q.Get("subtaskId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, apierror.Validation("invalid subtaskId"))
			return
		}
		actions, err := s.stores.Actions.ListBySubtask(r.Context(), id, page)
		if err != nil {
			writeError(w, apierror.Unavailable("list actions", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
		return
	}

	sessionID, err := uuid.Parse(q.Get("sessionId"))
	if err != nil {
		writeError(w, apierror.Validation("sessionId or subtaskId query param is required"))
		return
	}
	actions, err := s.stores.Actions.ListBySession(r.Context(), sessionID, page)
	if err != nil {
		writeError(w, apierror.Unavailable("list actions", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}
