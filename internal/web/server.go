package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/artmap/internal/config"
	"github.com/kozaktomas/artmap/internal/snapshot"
	"github.com/kozaktomas/artmap/internal/web/handlers"
	"github.com/kozaktomas/artmap/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	catalog    *snapshot.Catalog
	router     *chi.Mux
	httpServer *http.Server
	images     *handlers.ImagesHandler
}

// NewServer creates a new web server answering from catalog. Images are
// served from cfg.Dataset.Dir.
func NewServer(cfg *config.Config, catalog *snapshot.Catalog) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:  cfg,
		catalog: catalog,
		router:  r,
		images:  handlers.NewImagesHandler(cfg.Dataset.Dir),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Reload reloads the snapshot. It is shared by SIGHUP and POST /api/v1/reload.
func (s *Server) Reload(ctx context.Context) error {
	return s.catalog.Load(ctx)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := s.images.Close(); err != nil {
		log.Printf("Warning: closing dataset root: %v", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
