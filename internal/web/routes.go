package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/web/handlers"
	"github.com/kozaktomas/attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	sessionsHandler := handlers.NewSessionsHandler(s.registry)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// SSE stream is long-lived and must not be cut by the request timeout.
		r.Get("/{id}/events", sessionsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(constants.RequestTimeout))

			r.Post("/", sessionsHandler.Create)
			r.Get("/", sessionsHandler.List)
			r.Get("/{id}", sessionsHandler.Get)
			r.Delete("/{id}", sessionsHandler.Delete)
			r.Post("/{id}/capture", sessionsHandler.Capture)
			r.Post("/{id}/confirm", sessionsHandler.Confirm)
			r.Post("/{id}/stop", sessionsHandler.Stop)
			r.Post("/{id}/finalize", sessionsHandler.Finalize)
			r.Post("/{id}/reset", sessionsHandler.Reset)
		})
	})
}
