// Package server provides the HTTP server fronting the authentication flow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nagare-io/authgate/internal/auth"
	"github.com/nagare-io/authgate/internal/auth/pending"
	"github.com/nagare-io/authgate/internal/config"
	"github.com/nagare-io/authgate/internal/logger"
	"github.com/nagare-io/authgate/internal/utils"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second

	// sweepInterval is how often expired pending authorizations are dropped.
	sweepInterval = time.Minute
)

// Server hosts the authentication endpoints and the health checks.
type Server struct {
	config *config.Config
	auth   *auth.Service
}

// NewServer creates a new server instance with the provided configuration.
func NewServer(cfg *config.Config, authService *auth.Service) *Server {
	if cfg == nil {
		logger.Fatal("Config cannot be nil")
	}
	if authService == nil {
		logger.Fatal("Auth service cannot be nil")
	}

	return &Server{
		config: cfg,
		auth:   authService,
	}
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	s.auth.RegisterRoutes(mux)

	return s.auth.WrapWithMiddleware(mux)
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
// The pending-store sweeper runs on its own timer for the same lifetime.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.buildHandler(),
	}

	go pending.RunSweeper(ctx, s.auth.Pending(), sweepInterval)

	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// Module provides the server dependencies
var Module = fx.Module("server",
	fx.Provide(
		NewServer,
	),
)
