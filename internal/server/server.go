// Package server exposes the memory engine to the chat collaborator over a
// small JSON HTTP API.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hollowshell/mnemo/internal/engine"
)

// Server is the mnemo HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server around the engine.
func New(eng *engine.Engine, version string) *Server {
	s := &Server{
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Post("/context", s.handleBuildContext)

		r.Post("/memories", s.handleAddMemory)
		r.Post("/memories/disable", s.handleDisableMemories)
		r.Get("/memories/recent", s.handleRecentMemories)

		r.Post("/feedback/windows", s.handleOpenWindow)
		r.Post("/feedback/messages", s.handlePlayerMessage)
		r.Post("/feedback/windows/{windowID}/resolve", s.handleResolveWindow)

		r.Post("/dialogues", s.handleAddDialogue)
		r.Post("/decay", s.handleDecay)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"entries": s.engine.Store.TotalEntries(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
