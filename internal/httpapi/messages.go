package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/messaging"
	"github.com/agentmemory/backend/internal/store"
)

func (s *Server) registerMessageRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/messages", withLimiter(s.writeLimiter, s.handleSendMessage))
	mux.HandleFunc("GET /api/messages", withLimiter(s.readLimiter, s.handleListMessages))
	mux.HandleFunc("POST /api/messages/{id}/read", withLimiter(s.writeLimiter, s.handleMarkMessageRead))

	mux.HandleFunc("POST /api/subscriptions", withLimiter(s.writeLimiter, s.handleSubscribe))
	mux.HandleFunc("DELETE /api/subscriptions/{id}", withLimiter(s.writeLimiter, s.handleUnsubscribe))
}

type sendMessageRequest struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Topic    string          `json:"topic"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Priority int             `json:"priority"`
	TTLSecs  int             `json:"ttlSeconds"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeValidated(r, s.schemas.messageSend, &req); err != nil {
		writeError(w, err)
		return
	}

	var ttl time.Duration
	if req.TTLSecs > 0 {
		ttl = time.Duration(req.TTLSecs) * time.Second
	}

	msg, err := s.messages.Send(r.Context(), messaging.SendInput{
		From: req.From, To: req.To, Topic: req.Topic, Kind: req.Kind,
		Payload: req.Payload, Priority: req.Priority, TTL: ttl,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recipient := q.Get("recipient")
	if recipient == "" {
		writeError(w, apierror.Validation("recipient query param is required"))
		return
	}

	filter := store.MessageFilter{Recipient: recipient, Topic: q.Get("topic"), Kind: q.Get("kind")}
	if raw := q.Get("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, apierror.Validation("unread must be true or false"))
			return
		}
		filter.Unread = &unread
	}

	msgs, err := s.messages.List(r.Context(), filter, pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type markReadRequest struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apierror.Validation("invalid message id"))
		return
	}
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AgentID == "" {
		writeError(w, apierror.Validation("agentId is required"))
		return
	}
	if err := s.messages.MarkRead(r.Context(), id, req.AgentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type subscribeRequest struct {
	AgentID string `json:"agentId"`
	Topic   string `json:"topic"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sub, err := s.messages.Subscribe(r.Context(), req.AgentID, req.Topic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	// The subscription id path segment doubles as "agentId:topic" since
	// subscriptions are keyed by that pair rather than a separately
	// surfaced id in list responses.
	raw := r.PathValue("id")
	agentID, topic, ok := strings.Cut(raw, ":")
	if !ok {
		writeError(w, apierror.Validation("subscription id must be agentId:topic"))
		return
	}
	if err := s.messages.Unsubscribe(r.Context(), agentID, topic); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
