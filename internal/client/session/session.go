// Package session owns the client-side token lifecycle: persistence, expiry
// tracking and refresh against the gateway.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nagare-io/authgate/internal/auth/claims"
	"github.com/nagare-io/authgate/internal/auth/constants"
	"github.com/nagare-io/authgate/internal/auth/models"
	"github.com/nagare-io/authgate/internal/auth/providers"
	"github.com/nagare-io/authgate/internal/client/store"
	"github.com/nagare-io/authgate/internal/config"
	"github.com/nagare-io/authgate/internal/logger"
	"go.uber.org/zap"
)

// Manager holds the current TokenSet and keeps it in sync with the encrypted
// store. The set is only ever replaced as a whole; a failed refresh wipes it
// entirely rather than leaving stale partial tokens behind.
type Manager struct {
	mu        sync.Mutex
	store     *store.Store
	http      *resty.Client
	tokens    models.TokenSet
	principal *models.Principal
	now       func() time.Time
}

// NewManager creates a manager talking to the gateway at cfg.APIURL.
func NewManager(cfg *config.ClientConfig, st *store.Store) *Manager {
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(constants.ExchangeTimeout)

	return &Manager{
		store: st,
		http:  client,
		now:   time.Now,
	}
}

// Initialize loads any persisted session. An unreadable store surfaces as "no
// session", not as an error.
func (m *Manager) Initialize() error {
	tokens, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = tokens
	m.principal = nil
	if tokens.IDToken != "" {
		principal, err := claims.Parse(tokens.IDToken)
		if err != nil {
			logger.Warn("Stored ID token is unreadable", zap.Error(err))
		} else {
			m.principal = principal
		}
	}
	return nil
}

// Tokens returns a snapshot of the current TokenSet.
func (m *Manager) Tokens() models.TokenSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// Principal returns the identity derived from the current ID token, or nil.
func (m *Manager) Principal() *models.Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.principal
}

// IsAuthenticated is derived, never stored: the access token must be present
// and its expiry in the future.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.Valid(m.now())
}

// SetTokens persists and adopts a fresh token response. The expiry is computed
// here, at issuance: now + expires_in. The refresh token is kept from the
// previous set unless the server rotated it.
func (m *Manager) SetTokens(resp *providers.TokenResponse) error {
	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = constants.DefaultExpiresIn
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := models.TokenSet{
		IDToken:      resp.IDToken,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    m.now().Add(time.Duration(expiresIn) * time.Second),
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = m.tokens.RefreshToken
	}

	if err := m.store.Save(tokens); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.tokens = tokens
	m.principal = nil
	if tokens.IDToken != "" {
		if principal, err := claims.Parse(tokens.IDToken); err == nil {
			m.principal = principal
		}
	}
	return nil
}

// Refresh exchanges the refresh token for fresh access/ID tokens. Any failure
// clears the whole session; the next user action forces a new login.
func (m *Manager) Refresh(ctx context.Context) error {
	current := m.Tokens()
	principal := m.Principal()

	if current.RefreshToken == "" {
		_ = m.Clear()
		return fmt.Errorf("no refresh token available")
	}

	body := map[string]string{"refreshToken": current.RefreshToken}
	if principal != nil {
		body["username"] = principal.Email
	}

	var result providers.TokenResponse
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/auth/token/refresh")
	if err != nil {
		_ = m.Clear()
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if resp.IsError() {
		_ = m.Clear()
		return fmt.Errorf("token refresh failed with status %d", resp.StatusCode())
	}
	if result.AccessToken == "" {
		_ = m.Clear()
		return fmt.Errorf("token refresh returned no access token")
	}

	if result.RefreshToken == "" {
		result.RefreshToken = current.RefreshToken
	}
	if err := m.SetTokens(&result); err != nil {
		_ = m.Clear()
		return err
	}
	return nil
}

// SignOut notifies the gateway (best effort) and clears the session.
func (m *Manager) SignOut(ctx context.Context) error {
	if m.Tokens().AccessToken != "" {
		if _, err := m.http.R().SetContext(ctx).Post("/auth/logout"); err != nil {
			logger.Warn("Logout request failed", zap.Error(err))
		}
	}
	return m.Clear()
}

// Clear wipes the in-memory set and the persisted store.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.tokens = models.TokenSet{}
	m.principal = nil
	m.mu.Unlock()
	return m.store.Clear()
}
