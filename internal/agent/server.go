// internal/agent/server.go
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/gemscrape/internal/bus"
)

// Server exposes the agent over HTTP: a health probe, a status endpoint and
// the websocket the exporter connects to.
type Server struct {
	agent  *Agent
	router chi.Router
}

func NewServer(a *Agent) *Server {
	s := &Server{agent: a}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWS)
	s.router = r
	return s
}

// ServeHTTP delegates to the internal router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, scraping := s.agent.session.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     status,
		"isScraping": scraping,
		"uptime":     s.agent.Uptime().Round(time.Second).String(),
	})
}

// handleWS upgrades the exporter connection and serves it until it drops.
// One exporter at a time is the expected shape; a second connection gets
// its own endpoint but shares the single scrape session, which rejects
// overlapping runs.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := bus.Upgrade(w, r)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ep := bus.NewEndpoint(conn)
	s.agent.Attach(ep)

	slog.Info("exporter connected", "remote", r.RemoteAddr)
	if err := ep.Run(context.Background()); err != nil {
		slog.Warn("exporter connection ended", "error", err)
		return
	}
	slog.Info("exporter disconnected", "remote", r.RemoteAddr)
}
