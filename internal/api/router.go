package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade. Browser WebSocket clients cannot send an
		// Authorization header, so this route sits outside the JWT
		// group; the handler authenticates via a single-use ticket
		// issued by POST /auth/ws-ticket.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Coordinator and polling state
			r.Get("/status", s.handleStatus)
			r.Post("/refresh", s.handleRefresh)

			// Rule collections (cached controller state)
			r.Route("/rules", func(r chi.Router) {
				r.Get("/", s.handleListKinds)
				r.Route("/{kind}", func(r chi.Router) {
					r.Get("/", s.handleListEntities)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetEntity)
						r.Put("/enabled", s.handleSetEnabled)
					})
				})
			})

			// Change-event history
			r.Get("/changes", s.handleListChanges)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
