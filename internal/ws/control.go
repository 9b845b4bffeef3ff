package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Artemis1799/Ody-stras-sub001/internal/monitor"
	"github.com/Artemis1799/Ody-stras-sub001/internal/relay"
	"github.com/Artemis1799/Ody-stras-sub001/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// StatusReport is the body of GET /status.
type StatusReport struct {
	Status       string                  `json:"status"`
	WSPort       int                     `json:"wsPort"`
	Clients      int                     `json:"clients"`
	Roles        map[string]int          `json:"roles"`
	Connections  []relay.ConnectionState `json:"connections"`
	Session      session.Snapshot        `json:"session"`
	LastTransfer *session.Summary        `json:"lastTransfer,omitempty"`
	Process      *monitor.ProcessStats   `json:"process,omitempty"`
}

// ClientConfig is the body of GET /config: where clients should connect.
type ClientConfig struct {
	WSHost string `json:"wsHost"`
	WSPort int    `json:"wsPort"`
	WSURL  string `json:"wsUrl"`
}

type FlushResult struct {
	Flushed session.Snapshot `json:"flushed"`
}

// Control serves status and administration over plain HTTP.
type Control struct {
	hub     *relay.Hub
	wsPort  int
	proc    *monitor.Process
	metrics http.Handler
	localIP func() string
	log     *zap.Logger
}

// NewControl builds the control endpoint. proc and metricsHandler may be
// nil; the matching fields and routes are then omitted.
func NewControl(hub *relay.Hub, wsPort int, proc *monitor.Process, metricsHandler http.Handler, log *zap.Logger) *Control {
	return &Control{
		hub:     hub,
		wsPort:  wsPort,
		proc:    proc,
		metrics: metricsHandler,
		localIP: monitor.LocalIPv4,
		log:     log,
	}
}

func (c *Control) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors)

	r.Get("/status", c.handleStatus)
	r.Get("/config", c.handleConfig)
	r.Get("/session", c.handleSession)
	r.Post("/session/flush", c.handleFlush)
	if c.metrics != nil {
		r.Method(http.MethodGet, "/metrics", c.metrics)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// cors allows any origin and answers every preflight with an empty 200.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Control) handleStatus(w http.ResponseWriter, _ *http.Request) {
	reg := c.hub.Registry()
	report := StatusReport{
		Status:      "running",
		WSPort:      c.wsPort,
		Clients:     reg.Count(),
		Roles:       reg.RoleCounts(),
		Connections: reg.States(),
		Session:     c.hub.Store().Snapshot(),
	}
	if last, ok := c.hub.Store().LastCompleted(); ok {
		report.LastTransfer = &last
	}
	if c.proc != nil {
		stats := c.proc.Stats()
		report.Process = &stats
	}
	writeJSON(w, http.StatusOK, report)
}

func (c *Control) handleConfig(w http.ResponseWriter, _ *http.Request) {
	host := c.localIP()
	writeJSON(w, http.StatusOK, ClientConfig{
		WSHost: host,
		WSPort: c.wsPort,
		WSURL:  fmt.Sprintf("ws://%s:%d", host, c.wsPort),
	})
}

func (c *Control) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, c.hub.Store().Snapshot())
}

func (c *Control) handleFlush(w http.ResponseWriter, r *http.Request) {
	snap, err := c.hub.Flush(r.Context())
	if err != nil {
		c.log.Warn("flush failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, FlushResult{Flushed: snap})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readHeaderTimeout bounds slow clients on every listener.
const readHeaderTimeout = 10 * time.Second
