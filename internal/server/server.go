// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conductor/internal/agent"
	"github.com/xkilldash9x/conductor/internal/config"
	"github.com/xkilldash9x/conductor/internal/observability"
)

// Server hosts the agent HTTP surface: the message endpoint, progress
// reporting, the tool listing and the WebSocket stream.
type Server struct {
	cfg        config.ServerConfig
	controller *agent.Controller
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds the server around a wired controller.
func New(cfg config.ServerConfig, controller *agent.Controller, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		controller: controller,
		logger:     logger.Named("server"),
	}
}

// Router assembles the chi router with the full route table. Split out so
// tests can drive the handlers through httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(corsMiddleware)

	// WebSocket route stays outside the request logger: long-lived upgraded
	// connections confuse it.
	r.Get("/agent/ws", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)

		r.Get("/healthz", s.handleHealthz)
		r.Post("/agent/message", s.handleMessage)
		r.Get("/agent/steps", s.handleSteps)
		r.Get("/agent/tools", s.handleTools)
	})

	return r
}

// Start runs the listener and blocks until shutdown. SIGINT/SIGTERM trigger
// a graceful stop bounded by the configured shutdown timeout.
func (s *Server) Start() error {
	defer observability.Sync()

	s.httpServer = &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Router(),
	}

	s.logger.Info("Agent server starting", zap.String("address", s.cfg.ListenAddr))

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("Received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}

		s.controller.Store().Close()
		close(idleConnsClosed)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server ListenAndServe error", zap.Error(err))
		s.controller.Store().Close()
		return err
	}

	<-idleConnsClosed
	s.logger.Info("Agent server stopped.")
	return nil
}

// corsMiddleware allows browser frontends during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
