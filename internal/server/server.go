package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cwbudde/algo-sitar/session"
)

// Config holds server configuration
type Config struct {
	Port int
}

// Server is the HTTP control surface of a live session
type Server struct {
	config  Config
	router  *chi.Mux
	logger  *slog.Logger
	session *session.Session
}

// New creates a new server for sess
func New(cfg Config, sess *session.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  logger,
		session: sess,
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)

	// Controls
	r.Get("/params", s.handleGetParams)
	r.Put("/params/{name}", s.handleSetParam)
	r.Post("/preset", s.handleApplyPreset)
	r.Get("/presets", s.handleListPresets)
	r.Post("/presets/{name}", s.handleSavePreset)
	r.Post("/presets/{name}/recall", s.handleRecallPreset)
	r.Delete("/presets/{name}", s.handleDeletePreset)

	// Live input and recording
	r.Post("/input", s.handleAcquireInput)
	r.Delete("/input", s.handleReleaseInput)
	r.Post("/record/start", s.handleRecordStart)
	r.Post("/record/stop", s.handleRecordStop)
	r.Get("/take", s.handleDownloadTake)
	r.Post("/backing", s.handleUploadBacking)
	r.Delete("/backing", s.handleClearBacking)

	// Offline
	r.Route("/offline", func(r chi.Router) {
		r.Post("/input", s.handleOfflineInput)
		r.Post("/render", s.handleOfflineRender)
		r.Get("/result", s.handleOfflineResult)
		r.Post("/preview", s.handlePreviewStart)
		r.Delete("/preview", s.handlePreviewStop)
		r.Post("/export", s.handleOfflineExport)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // offline renders and SSE
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}
