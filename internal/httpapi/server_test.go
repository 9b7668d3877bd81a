package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/config"
)

func TestBearerTokenExtractsFromHeader(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"", ""},
		{"Basic abc123", ""},
		{"Bearer ", ""},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		if c.header != "" {
			r.Header.Set("Authorization", c.header)
		}
		if got := bearerToken(r); got != c.want {
			t.Errorf("bearerToken(%q) = %q, want %q", c.header, got, c.want)
		}
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.2:1234"

	if got := clientIP(r); got != "203.0.113.5" {
		t.Fatalf("clientIP = %q, want 203.0.113.5", got)
	}
}

func TestClientIPFallsBackToRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.7")
	r.RemoteAddr = "10.0.0.2:1234"

	if got := clientIP(r); got != "198.51.100.7" {
		t.Fatalf("clientIP = %q, want 198.51.100.7", got)
	}
}

func TestClientIPFallsBackToUnknown(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.9:5555"

	if got := clientIP(r); got != "unknown" {
		t.Fatalf("clientIP = %q, want unknown", got)
	}
}

func newTestServer(authRequired bool, token string) *Server {
	cfg := config.Default()
	cfg.API.AuthRequired = authRequired
	cfg.API.AuthToken = token
	return &Server{cfg: cfg}
}

func TestAuthMiddlewareAllowsHealthWithoutToken(t *testing.T) {
	s := newTestServer(true, "secret")
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for /health without auth", w.Code)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	s := newTestServer(true, "secret")
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for missing bearer token", w.Code)
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	s := newTestServer(true, "secret")
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	r.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a valid bearer token", w.Code)
	}
}

func TestAuthMiddlewarePassesThroughWhenDisabled(t *testing.T) {
	s := newTestServer(false, "")
	handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when AuthRequired is false", w.Code)
	}
}

func TestWriteErrorMapsApiErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, apierror.NotFound("project missing"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, context.DeadlineExceeded)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for a non-apierror", w.Code)
	}
}
