package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/web/handlers"
	"github.com/kozaktomas/attendance/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	registry   *handlers.SessionRegistry
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps handlers.RegistryDeps) *Server {
	r := chi.NewRouter()

	registry := handlers.NewSessionRegistry(deps, cfg.Web.SessionTTL)

	s := &Server{
		config:   cfg,
		router:   r,
		registry: registry,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open for the whole session
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and the session cleanup loop
func (s *Server) Start() error {
	s.registry.StartCleanup(constants.SessionCleanupInterval)
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, releasing the camera of every
// session still capturing.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	s.registry.Stop()
	for _, ls := range s.registry.List() {
		s.submitOnShutdown(ctx, ls)
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// submitOnShutdown stops a live session and makes one attempt to submit any
// attendance that has not been submitted yet.
func (s *Server) submitOnShutdown(ctx context.Context, ls *handlers.LiveSession) {
	state := ls.Session.State()
	if state.Live() {
		if _, err := ls.Session.Stop(); err != nil {
			log.Printf("WARNING: stop session %s: %v", ls.ID, err)
			return
		}
	} else if state != attendance.StateFinalizing {
		return
	}

	courseID := ls.Session.CourseID()
	if _, err := ls.Session.Finalize(ctx); err != nil {
		log.Printf("WARNING: session %s for course %s stopped without submission: %v", ls.ID, courseID, err)
		return
	}
	log.Printf("Submitted attendance for course %s (session %s) on shutdown", courseID, ls.ID)
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Registry returns the session registry for testing
func (s *Server) Registry() *handlers.SessionRegistry {
	return s.registry
}
