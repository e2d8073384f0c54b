// Package live serves view-models to browsers over WebSocket.
//
// Each connection gets its own view-model, binding and dispatch loop.
// Clients send actions as JSON ({"action":"start"}) and receive one frame
// per throttled render:
//
//	srv := live.NewServer(live.DefaultConfig())
//	defer srv.Close()
//	http.ListenAndServe(":8080", srv)
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Server owns the live sessions.
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	router   chi.Router
	sessions mapset.Set[*Session]
	logger   *slog.Logger
	started  time.Time
}

// NewServer creates a Server. Zero fields of cfg take defaults.
func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		sessions: mapset.NewSet[*Session](),
		logger:   cfg.Logger.With("component", "live"),
		started:  time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	return s.sessions.Cardinality()
}

// Sessions returns the open sessions.
func (s *Server) Sessions() []*Session {
	return s.sessions.ToSlice()
}

// Close closes every open session.
func (s *Server) Close() {
	for _, sess := range s.sessions.ToSlice() {
		sess.Close()
	}
}

func (s *Server) remove(sess *Session) {
	if s.sessions.Contains(sess) {
		s.sessions.Remove(sess)
		s.config.Metrics.RecordSessionClose()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(s, conn)
	s.sessions.Add(sess)
	s.config.Metrics.RecordSessionOpen()

	sess.start()
	sess.readLoop()
}

type health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Started  string `json:"started"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health{
		Status:   "ok",
		Sessions: s.SessionCount(),
		Started:  humanize.Time(s.started),
	})
}
