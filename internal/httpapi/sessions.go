package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/store"
)

func (s *Server) registerSessionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", withLimiter(s.readLimiter, s.handleListSessions))
	mux.HandleFunc("GET /api/sessions/{id}", withLimiter(s.readLimiter, s.handleGetSession))
	mux.HandleFunc("POST /api/sessions", withLimiter(s.writeLimiter, s.handleCreateSession))
	mux.HandleFunc("POST /api/sessions/{id}/close", withLimiter(s.writeLimiter, s.handleCloseSession))

	mux.HandleFunc("GET /api/requests", withLimiter(s.readLimiter, s.handleListRequests))
	mux.HandleFunc("POST /api/requests", withLimiter(s.writeLimiter, s.handleCreateRequest))

	mux.HandleFunc("GET /api/tasks", withLimiter(s.readLimiter, s.handleListTasks))
	mux.HandleFunc("POST /api/tasks", withLimiter(s.writeLimiter, s.handleCreateTask))

	mux.HandleFunc("GET /api/subtasks", withLimiter(s.readLimiter, s.handleListSubtasks))
	mux.HandleFunc("POST /api/subtasks", withLimiter(s.writeLimiter, s.handleCreateSubtask))
	mux.HandleFunc("POST /api/subtasks/{id}/claim", withLimiter(s.writeLimiter, s.handleClaimSubtask))
	mux.HandleFunc("POST /api/subtasks/{id}/complete", withLimiter(s.writeLimiter, s.handleCompleteSubtask))
	mux.HandleFunc("POST /api/subtasks/{id}/fail", withLimiter(s.writeLimiter, s.handleFailSubtask))
}

type createSessionRequest struct {
	ProjectID  uuid.UUID `json:"projectId"`
	SessionKey string    `json:"sessionKey"`
	AgentType  string    `json:"agentType"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.tracker.StartSession(r.Context(), req.ProjectID, req.SessionKey, req.AgentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var projectID uuid.UUID
	if v := r.URL.Query().Get("projectId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, apierror.Validation("invalid projectId"))
			return
		}
		projectID = id
	}
	sessions, err := s.stores.Sessions.List(r.Context(), projectID, pageFromQuery(r))
	if err != nil {
		writeError(w, apierror.Unavailable("list sessions", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid session id"))
		return
	}
	sess, err := s.stores.Sessions.Get(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, apierror.NotFound("session not found"))
			return
		}
		writeError(w, apierror.Unavailable("get session", err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid session id"))
		return
	}
	if err := s.tracker.EndSession(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createRequestRequest struct {
	SessionID  uuid.UUID `json:"sessionId"`
	Prompt     string    `json:"prompt"`
	PromptType string    `json:"promptType"`
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Prompt == "" {
		writeError(w, apierror.Validation("prompt is required"))
		return
	}
	rd := &store.RequestData{ID: store.GenID(), SessionID: req.SessionID, Prompt: req.Prompt, PromptType: req.PromptType}
	if err := s.stores.Requests.Create(r.Context(), rd); err != nil {
		writeError(w, apierror.Unavailable("create request", err))
		return
	}
	writeJSON(w, http.StatusCreated, rd)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, apierror.Validation("sessionId query param is required"))
		return
	}
	requests, err := s.stores.Requests.ListBySession(r.Context(), sessionID, pageFromQuery(r))
	if err != nil {
		writeError(w, apierror.Unavailable("list requests", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

type createTaskRequest struct {
	RequestID uuid.UUID `json:"requestId"`
	Wave      int       `json:"wave"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.tracker.CreateTask(r.Context(), req.RequestID, req.Wave)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(r.URL.Query().Get("requestId"))
	if err != nil {
		writeError(w, apierror.Validation("requestId query param is required"))
		return
	}
	tasks, err := s.stores.Tasks.ListByRequest(r.Context(), requestID)
	if err != nil {
		writeError(w, apierror.Unavailable("list tasks", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

type createSubtaskRequest struct {
	TaskID      uuid.UUID   `json:"taskId"`
	SessionID   uuid.UUID   `json:"sessionId"`
	AgentType   string      `json:"agentType"`
	Description string      `json:"description"`
	BlockedBy   []uuid.UUID `json:"blockedBy"`
}

func (s *Server) handleCreateSubtask(w http.ResponseWriter, r *http.Request) {
	var req createSubtaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	st, err := s.tracker.CreateSubtask(r.Context(), req.TaskID, req.SessionID, req.AgentType, req.Description, req.BlockedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleListSubtasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var subtasks []*store.SubtaskData
	var err error
	switch {
	case q.Get("taskId") != "":
		taskID, perr := uuid.Parse(q.Get("taskId"))
		if perr != nil {
			writeError(w, apierror.Validation("invalid taskId"))
			return
		}
		subtasks, err = s.stores.Subtasks.ListByTask(r.Context(), taskID)
	case q.Get("status") != "":
		subtasks, err = s.stores.Subtasks.ListByStatus(r.Context(), q.Get("status"), pageFromQuery(r))
	default:
		subtasks, err = s.stores.Subtasks.Search(r.Context(), q.Get("agentType"), q.Get("agentId"), nil, pageFromQuery(r))
	}
	if err != nil {
		writeError(w, apierror.Unavailable("list subtasks", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subtasks": subtasks})
}

type claimSubtaskRequest struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleClaimSubtask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid subtask id"))
		return
	}
	var req claimSubtaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ok, err := s.tracker.Claim(r.Context(), id, req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apierror.Conflict("subtask already claimed or still blocked"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"claimed": true})
}

func (s *Server) handleCompleteSubtask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid subtask id"))
		return
	}
	unblocked, err := s.tracker.Complete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unblocked": unblocked})
}

func (s *Server) handleFailSubtask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid subtask id"))
		return
	}
	retryCount, err := s.tracker.Fail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"retryCount": retryCount})
}
