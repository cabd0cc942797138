// Package web hosts the HTTP API server.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/integrity"
	"github.com/recallapp/recall/internal/scan"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/web/middleware"
)

// Server represents the web server.
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server

	store    store.Store
	pipeline *scan.Pipeline
	auditor  *integrity.Runner
	index    *store.PersonIndex
}

// NewServer creates a new web server. index may be nil when nearest-person
// pre-selection is disabled.
func NewServer(cfg *config.Config, host string, port int, st store.Store, pipeline *scan.Pipeline, index *store.PersonIndex) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:   cfg,
		router:   r,
		store:    st,
		pipeline: pipeline,
		auditor:  integrity.NewRunner(st, st),
		index:    index,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for uploads
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
