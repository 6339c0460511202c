package auth

import (
	"fmt"
	"net/http"

	"github.com/nagare-io/authgate/internal/auth/domains"
	"github.com/nagare-io/authgate/internal/auth/handlers"
	"github.com/nagare-io/authgate/internal/auth/middleware"
	"github.com/nagare-io/authgate/internal/auth/pending"
	"github.com/nagare-io/authgate/internal/auth/providers"
	"github.com/nagare-io/authgate/internal/config"
)

// Service represents the authentication service
type Service struct {
	config   *config.OAuthConfig
	provider providers.Provider
	pending  pending.Store
	handler  *handlers.Handler
}

// NewService creates a new authentication service
func NewService(cfg *config.OAuthConfig, provider providers.Provider, store pending.Store) (*Service, error) {
	allowed := cfg.AllowedDomains()
	if len(allowed) == 0 {
		// Fail closed: no allow-list means nobody signs in.
		return nil, fmt.Errorf("allowed email domains not configured")
	}

	handler := handlers.NewHandler(provider, store, domains.NewValidator(allowed))

	return &Service{
		config:   cfg,
		provider: provider,
		pending:  store,
		handler:  handler,
	}, nil
}

// RegisterRoutes registers all auth-related routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", s.handler.HandleLogin)
	mux.HandleFunc("/auth/callback", s.handler.HandleCallback)
	mux.HandleFunc("/auth/logout", s.handler.HandleLogout)
	mux.HandleFunc("/auth/token/refresh", s.handler.HandleRefresh)
	mux.Handle("/auth/user", middleware.RequireSession(http.HandlerFunc(s.handler.HandleUser)))
}

// WrapWithMiddleware wraps the mux with the cross-cutting middleware
func (s *Service) WrapWithMiddleware(handler http.Handler) http.Handler {
	return middleware.CORSWithOrigins(s.config.AllowOrigins)(middleware.RequestLogger(handler))
}

// Pending returns the pending-authorization store, for the sweeper.
func (s *Service) Pending() pending.Store {
	return s.pending
}

// GetProvider returns the configured identity provider
func (s *Service) GetProvider() providers.Provider {
	return s.provider
}
