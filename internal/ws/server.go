// Package ws serves the relay over WebSocket and exposes the plain HTTP
// control endpoint.
package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Artemis1799/Ody-stras-sub001/internal/relay"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Server struct {
	hub            *relay.Hub
	opts           Options
	log            *zap.Logger
	upgrader       websocket.Upgrader
	allowAll       bool
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool

	// ctx outlives individual requests; sockets are served under it.
	ctx context.Context

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewServer(ctx context.Context, hub *relay.Hub, opts Options, log *zap.Logger) *Server {
	s := &Server{
		hub:            hub,
		opts:           opts.withDefaults(),
		log:            log,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		ctx:            ctx,
		clients:        make(map[*client]struct{}),
	}

	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			s.allowAll = true
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return s
}

// Routes accepts sockets on both / and /ws.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleWS)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c := newClient(nil, s.opts, s.log)

	// Register before upgrading so a full relay can still answer with 503.
	if err := s.hub.Register(r.Context(), c); err != nil {
		if errors.Is(err, relay.ErrTooManyConnections) {
			s.log.Warn("ws connection refused", zap.String("remote", r.RemoteAddr), zap.Error(err))
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("ws upgrade error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		s.hub.Unregister(c)
		c.close()
		return
	}
	c.conn = conn

	s.track(c)
	s.log.Info("ws client connected", zap.String("conn", c.id), zap.String("remote", r.RemoteAddr))

	go c.writePump()
	go func() {
		defer func() {
			s.untrack(c)
			s.log.Info("ws client disconnected", zap.String("conn", c.id), zap.String("remote", r.RemoteAddr))
		}()
		c.readPump(s.ctx, s.hub)
	}()
}

func (s *Server) track(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// CloseClients closes every open socket. http.Server.Shutdown leaves
// hijacked connections alone, so shutdown calls this too.
func (s *Server) CloseClients() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowAll {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}
	if host == r.Host {
		return true
	}

	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}
