package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/snapshot"
)

func (s *Server) registerCompactRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/compact/save", withLimiter(s.writeLimiter, s.handleCompactSave))
	mux.HandleFunc("POST /api/compact/restore", withLimiter(s.writeLimiter, s.handleCompactRestore))
	mux.HandleFunc("POST /api/context/brief", withLimiter(s.readLimiter, s.handleContextBrief))
}

type compactSaveAgentRequest struct {
	AgentID         string   `json:"agentId"`
	ProgressSummary string   `json:"progressSummary"`
	ToolsUsed       []string `json:"toolsUsed,omitempty"`
	RoleContext     string   `json:"roleContext,omitempty"`
}

type compactSaveRequest struct {
	SessionID     uuid.UUID                 `json:"sessionId"`
	CompactID     string                    `json:"compactId"`
	ModifiedFiles []string                  `json:"modifiedFiles,omitempty"`
	Summary       string                    `json:"summary,omitempty"`
	Payload       []byte                    `json:"payload"`
	Agents        []compactSaveAgentRequest `json:"agents,omitempty"`
}

func (s *Server) handleCompactSave(w http.ResponseWriter, r *http.Request) {
	var req compactSaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	agents := make([]snapshot.AgentState, 0, len(req.Agents))
	for _, a := range req.Agents {
		agents = append(agents, snapshot.AgentState{
			AgentID: a.AgentID, ProgressSummary: a.ProgressSummary,
			ToolsUsed: a.ToolsUsed, RoleContext: a.RoleContext,
		})
	}

	sn, err := s.snapshots.Save(r.Context(), snapshot.SaveInput{
		SessionID: req.SessionID, CompactID: req.CompactID,
		ModifiedFiles: req.ModifiedFiles, Summary: req.Summary,
		Payload: req.Payload, Agents: agents,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"snapshotId": sn.ID,
		"sessionId":  sn.SessionID,
		"compactId":  sn.CompactID,
	})
}

type compactRestoreRequest struct {
	SessionID uuid.UUID `json:"sessionId"`
	AgentID   string    `json:"agentId"`
	AgentType string    `json:"agentType"`
	MaxTokens int       `json:"maxTokens"`
}

// handleCompactRestore restores the session's stored snapshot (or the
// live-state fallback) and returns its modified files and agent contexts
// alongside a brief from the Context Generator and a constant
// "compacted": true. The brief is generated from the caller's agent type,
// agent id and token budget against current store state; the snapshot
// payload is not passed to the Context Generator.
func (s *Server) handleCompactRestore(w http.ResponseWriter, r *http.Request) {
	var req compactRestoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SessionID == uuid.Nil {
		writeError(w, apierror.Validation("sessionId is required"))
		return
	}

	result, err := s.snapshots.Restore(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	brief, err := s.contextgen.Generate(r.Context(), req.AgentType, req.AgentID, req.MaxTokens)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"compacted":     true,
		"fromLiveState": result.FromLiveState,
		"brief":         brief.String(),
		"tokenCount":    estimateTokens(brief.String()),
		"sources":       brief.Sources,
		"truncated":     brief.Truncated,
		"modifiedFiles": result.ModifiedFiles,
		"agents":        result.Agents,
	})
}

type contextBriefRequest struct {
	AgentType string `json:"agentType"`
	AgentID   string `json:"agentId"`
	MaxTokens int    `json:"maxTokens"`
}

func (s *Server) handleContextBrief(w http.ResponseWriter, r *http.Request) {
	var req contextBriefRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	brief, err := s.contextgen.Generate(r.Context(), req.AgentType, req.AgentID, req.MaxTokens)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"brief":      brief.String(),
		"tokenCount": estimateTokens(brief.String()),
		"sources":    brief.Sources,
		"truncated":  brief.Truncated,
	})
}

func estimateTokens(text string) int {
	return int(float64(len(text)) / 3.5)
}
