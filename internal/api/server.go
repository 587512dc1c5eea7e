// Package api provides the admin HTTP surface for the sync daemon: sync
// status, manual resync, cache invalidation, and catalog search.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shelfsyncapp/shelfsync-server/internal/catalog"
	"github.com/shelfsyncapp/shelfsync-server/internal/sync"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	session *sync.Session
	catalog catalog.Service
	router  *chi.Mux
	logger  *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(session *sync.Session, cat catalog.Service, logger *slog.Logger) *Server {
	s := &Server{
		session: session,
		catalog: cat,
		router:  chi.NewRouter(),
		logger:  logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.handleSyncStatus)
			r.Post("/resync", s.handleForceResync)
			r.Post("/online", s.handleSetOnline)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Post("/invalidate", s.handleInvalidateCache)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/search", s.handleCatalogSearch)
			r.Get("/lists/{subject}", s.handleCatalogList)
		})
	})
}
