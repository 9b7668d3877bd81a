// Package httpapi implements the HTTP Surface: a net/http 1.22+
// method-pattern ServeMux exposing project/session/task/subtask CRUD,
// the message bus, the compact save/restore protocol, context briefs,
// routing suggestions, token/capacity tracking, the agent registry, and
// dashboard aggregates, all behind schema validation and per-route rate
// limiting.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/capacity"
	"github.com/agentmemory/backend/internal/config"
	"github.com/agentmemory/backend/internal/contextgen"
	"github.com/agentmemory/backend/internal/messaging"
	"github.com/agentmemory/backend/internal/routing"
	"github.com/agentmemory/backend/internal/snapshot"
	"github.com/agentmemory/backend/internal/store"
	"github.com/agentmemory/backend/internal/tracing"
	"github.com/agentmemory/backend/internal/tracking"
)

const tracerName = "github.com/agentmemory/backend/internal/httpapi"

// Server is the HTTP Surface.
type Server struct {
	cfg        *config.Config
	stores     *store.Stores
	messages   *messaging.Bus
	tracker    *tracking.Tracker
	snapshots  *snapshot.Engine
	contextgen *contextgen.Generator
	routing    *routing.Router
	capacity   *capacity.Monitor

	authLimiter  *rateLimiter
	writeLimiter *rateLimiter
	readLimiter  *rateLimiter
	schemas      *schemaSet

	httpServer *http.Server
	startedAt  time.Time
}

// NewServer constructs the HTTP Surface over the given component set.
func NewServer(
	cfg *config.Config,
	stores *store.Stores,
	messages *messaging.Bus,
	tracker *tracking.Tracker,
	snapshots *snapshot.Engine,
	ctxGen *contextgen.Generator,
	router *routing.Router,
	capMonitor *capacity.Monitor,
) *Server {
	schemas, err := newSchemaSet()
	if err != nil {
		panic(fmt.Sprintf("httpapi: compile request schemas: %v", err))
	}
	return &Server{
		cfg: cfg, stores: stores, messages: messages, tracker: tracker,
		snapshots: snapshots, contextgen: ctxGen, routing: router, capacity: capMonitor,
		authLimiter:  newRateLimiter(10, 15*time.Minute),
		writeLimiter: newRateLimiter(60, time.Minute),
		readLimiter:  newRateLimiter(300, time.Minute),
		schemas:      schemas,
		startedAt:    time.Now(),
	}
}

// BuildMux registers every route and wraps writes/reads with the matching
// rate-limit preset.
func (s *Server) BuildMux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	s.registerProjectRoutes(mux)
	s.registerSessionRoutes(mux)
	s.registerHierarchyRoutes(mux)
	s.registerActionRoutes(mux)
	s.registerMessageRoutes(mux)
	s.registerCompactRoutes(mux)
	s.registerRoutingRoutes(mux)
	s.registerCapacityRoutes(mux)
	s.registerRegistryRoutes(mux)
	s.registerDashboardRoutes(mux)

	return s.authMiddleware(s.tracingMiddleware(mux))
}

// tracingMiddleware starts one span per request, named by the matched route
// pattern so low-cardinality route names (not raw paths with ids) reach the
// tracer backend.
func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), tracerName, r.Pattern)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware enforces a bearer token on every /api/ route when
// cfg.API.AuthRequired is set; /health stays open for load balancer probes.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.API.AuthRequired || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		if bearerToken(r) != s.cfg.API.AuthToken || s.cfg.API.AuthToken == "" {
			writeError(w, apierror.Auth("missing or invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// Start runs the HTTP Surface until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.API.Host, s.cfg.API.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.BuildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("httpapi: listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := true
	var latencyMs int64
	if s.stores != nil && s.stores.Projects != nil {
		start := time.Now()
		_, err := s.stores.Projects.List(r.Context(), store.PageOpts{Limit: 1})
		latencyMs = time.Since(start).Milliseconds()
		if err != nil {
			healthy = false
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": "dev",
		"database": map[string]any{
			"healthy":   healthy,
			"latencyMs": latencyMs,
		},
		"features": map[string]any{
			"messageBus": true,
			"snapshots":  true,
			"routing":    true,
			"capacity":   true,
		},
	})
}

// writeJSON encodes data as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError type-switches err into the apierror taxonomy (falling back to
// 500) and writes the stable {error, message} body.
func writeError(w http.ResponseWriter, err error) {
	if apiErr, ok := apierror.As(err); ok {
		if apiErr.Kind == apierror.KindRateLimited && apiErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", apiErr.RetryAfter))
		}
		writeJSON(w, apiErr.Status(), map[string]string{
			"error":   string(apiErr.Kind),
			"message": apiErr.Message,
		})
		return
	}
	slog.Error("httpapi: unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   string(apierror.KindInternal),
		"message": "internal error",
	})
}

// decodeJSON decodes r's body into dst, returning a validation apierror on
// malformed JSON.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.Validation("invalid JSON body: " + err.Error())
	}
	return nil
}

// decodeValidated reads r's body once, validates it against schema, then
// unmarshals the same bytes into dst — the schema layer runs before any
// component method sees the request.
func decodeValidated(r *http.Request, schema *jsonschema.Schema, dst any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return apierror.Validation("failed to read request body: " + err.Error())
	}
	if err := validateBody(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apierror.Validation("invalid JSON body: " + err.Error())
	}
	return nil
}

// clientIP derives the rate-limit key from the first well-formed address
// in the X-Forwarded-For chain, falling back to X-Real-IP, then to the
// sentinel "unknown" rather than the connection's own address, which is
// typically a reverse proxy and not useful for per-client limiting.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for _, part := range strings.Split(fwd, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		if ip := net.ParseIP(real); ip != nil {
			return ip.String()
		}
	}
	return "unknown"
}

// withLimiter wraps next so a request is rejected with 429 before it does
// any work if key has exceeded lim's budget. X-RateLimit-Remaining and
// X-RateLimit-Reset are set on every response, admitted or not, so a client
// can watch its budget drain across a window rather than learning about it
// only at the 429.
func withLimiter(lim *rateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		res := lim.Allow(key)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetUnix, 10))
		if !res.Allowed {
			writeError(w, apierror.RateLimited(res.RetryAfterSec))
			return
		}
		next(w, r)
	}
}
