package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Overlay clients connect to the bare root; the configured path is an
	// alias.
	r.Get("/", s.handleWebSocket)
	if path := s.wsCfg.Path; path != "" && path != "/" {
		r.Get(path, s.handleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)
		r.Get("/sessions", s.handleSessions)
		r.Get("/worker", s.handleWorker)
		r.Get("/audit", s.handleListAudit)
	})

	return r
}
