// Package gateway implements the WebSocket Surface: real-time event fan-out
// to connected agents and dashboards, layered over the in-process event bus.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentmemory/backend/internal/bus"
	"github.com/agentmemory/backend/internal/config"
	"github.com/agentmemory/backend/pkg/protocol"
)

// Server is the WebSocket gateway: it upgrades /ws connections, subscribes
// each one to the shared event bus, and fans out server-side events
// filtered by the connection's channel subscriptions.
type Server struct {
	cfg      *config.Config
	eventPub bus.Publisher

	upgrader    websocket.Upgrader
	rateLimiter *RateLimiter
	clients     map[string]*Client
	mu          sync.RWMutex

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer constructs a gateway Server bound to cfg and subscribing to
// eventPub for outbound events.
func NewServer(cfg *config.Config, eventPub bus.Publisher) *Server {
	s := &Server{
		cfg:      cfg,
		eventPub: eventPub,
		clients:  make(map[string]*Client),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.rateLimiter = NewRateLimiter(20, 5)
	return s
}

// RateLimiter returns the server's connection-attempt rate limiter.
func (s *Server) RateLimiter() *RateLimiter { return s.rateLimiter }

// checkOrigin validates the WebSocket handshake Origin header against the
// configured whitelist. No configured origins means allow all (dev mode);
// an empty Origin header (non-browser clients) is always allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("gateway.cors_rejected", "origin", origin)
	return false
}

// BuildMux creates and caches the HTTP mux serving the WebSocket and health
// endpoints.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.mux = mux
	return mux
}

// Start begins listening for WebSocket connections until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// handleWebSocket upgrades the connection, registers the client, and blocks
// running its read/write loops until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimiter.Allow(clientIP(r)) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	var agentID string
	if s.cfg.Gateway.HMACSecret != "" {
		agentID = r.URL.Query().Get("agentId")
		token := r.URL.Query().Get("token")
		if !verifyHandshakeToken(s.cfg.Gateway.HMACSecret, agentID, token) {
			http.Error(w, "invalid handshake token", http.StatusUnauthorized)
			return
		}
	} else {
		agentID = r.URL.Query().Get("agentId")
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, agentID)
	s.registerClient(client)

	defer func() {
		s.unregisterClient(client)
		client.Close()
	}()

	client.Run(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, s.ClientCount())
}

// ClientCount returns the number of currently connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// BroadcastEvent sends event to every connected client whose subscriptions
// include its channel.
func (s *Server) BroadcastEvent(event bus.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel := protocol.ChannelForEvent(event.Name)
	for _, client := range s.clients {
		client.SendEvent(channel, event)
	}
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c

	s.eventPub.Subscribe(c.id, func(event bus.Event) {
		if bus.Internal(event.Name) {
			return
		}
		c.SendEvent(protocol.ChannelForEvent(event.Name), event)
	})

	slog.Info("gateway client connected", "id", c.id)
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.id)
	s.eventPub.Unsubscribe(c.id)
	slog.Info("gateway client disconnected", "id", c.id)
}

// StartTestServer creates a listener on a random port and returns its
// address and a start function, for use by integration tests.
func StartTestServer(s *Server, ctx context.Context) (addr string, start func()) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("listen: " + err.Error())
	}

	s.httpServer = &http.Server{Handler: mux}
	addr = ln.Addr().String()

	start = func() {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.httpServer.Shutdown(shutdownCtx)
		}()
		s.httpServer.Serve(ln)
	}

	return addr, start
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
