// Package server exposes the chat engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appconfig "github.com/Patelhetu-177/AvatarAI/internal/config"
	"github.com/Patelhetu-177/AvatarAI/internal/middleware"
	"github.com/Patelhetu-177/AvatarAI/pkg/health"
	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
	"github.com/Patelhetu-177/AvatarAI/pkg/metrics"
)

// Deps carries the already-constructed components the server routes to.
type Deps struct {
	Chat    ChatService
	Health  *health.Checker
	Metrics *metrics.Metrics
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	deps       Deps
	httpServer *http.Server
}

// New creates a Server with its router mounted.
func New(cfg *appconfig.AppConfig, log logger.Logger, deps Deps) *Server {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if log == nil {
		panic("logger cannot be nil")
	}
	if deps.Chat == nil {
		panic("chat service cannot be nil")
	}

	s := &Server{cfg: cfg, log: log, deps: deps}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	recoveryCfg := middleware.DefaultRecoveryConfig()
	recoveryCfg.Logger = s.log
	r.Use(middleware.Recovery(recoveryCfg))
	r.Use(s.log.HTTPMiddleware)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.HTTPMiddleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/api/chat/{companionID}", s.handleChat)

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.LivenessHandler())
		r.Get("/readyz", s.deps.Health.ReadinessHandler())
	}

	return r
}

// Listen starts the HTTP server and reports its terminal error on the
// returned channel.
func (s *Server) Listen() <-chan error {
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		s.log.Info("HTTP server listening", logger.IntField("port", s.cfg.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	return errs
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
