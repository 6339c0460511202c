// Package handlers implements the OAuth flow endpoints of the gateway.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nagare-io/authgate/internal/auth/claims"
	"github.com/nagare-io/authgate/internal/auth/constants"
	"github.com/nagare-io/authgate/internal/auth/cookies"
	"github.com/nagare-io/authgate/internal/auth/domains"
	"github.com/nagare-io/authgate/internal/auth/middleware"
	"github.com/nagare-io/authgate/internal/auth/pending"
	"github.com/nagare-io/authgate/internal/auth/pkce"
	"github.com/nagare-io/authgate/internal/auth/providers"
	"github.com/nagare-io/authgate/internal/logger"
	"github.com/nagare-io/authgate/internal/utils"
	"go.uber.org/zap"
)

// Handler handles the auth-related HTTP requests.
type Handler struct {
	provider  providers.Provider
	pending   pending.Store
	validator *domains.Validator
}

// NewHandler creates a new Handler instance
func NewHandler(provider providers.Provider, store pending.Store, validator *domains.Validator) *Handler {
	return &Handler{
		provider:  provider,
		pending:   store,
		validator: validator,
	}
}

// HandleLogin handles GET /auth/login: generates the PKCE material, records
// the pending authorization and redirects the browser to the identity
// provider.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	challenge, err := pkce.Generate()
	if err != nil {
		logger.Error("Failed to generate PKCE challenge", zap.Error(err))
		utils.WriteError(w, "server_error", "Failed to initiate login", http.StatusInternalServerError)
		return
	}

	// The verifier stays server-side; only the challenge goes on the URL.
	h.pending.Put(challenge.State, challenge.Verifier)

	authURL := h.provider.AuthCodeURL(challenge.State, challenge.Challenge, redirectURI(r))
	logger.Info("Redirecting to identity provider", zap.String("url", authURL))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback handles GET /auth/callback. Every outcome is terminal: a
// redirect to the landing route with either a success indicator or a
// machine-readable error code. Secrets never ride on the redirect and internal
// errors never escape as raw 500s.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		logger.Error("Identity provider returned error", zap.String("error", errParam))
		h.redirectError(w, r, constants.ErrCodeOAuth, "")
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		logger.Error("Missing code or state parameter")
		h.redirectError(w, r, constants.ErrCodeMissingParameters, "")
		return
	}

	verifier, err := h.pending.TakeAndRemove(state)
	if err != nil {
		logger.Error("Invalid or expired state parameter")
		h.redirectError(w, r, constants.ErrCodeInvalidState, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.ExchangeTimeout)
	defer cancel()

	tokens, err := h.provider.ExchangeCode(ctx, code, verifier, redirectURI(r))
	if err != nil {
		logger.Error("Failed to exchange code", zap.Error(err))
		h.redirectError(w, r, constants.ErrCodeTokenExchange, "")
		return
	}

	if err := h.provider.VerifyIDToken(ctx, tokens.IDToken); err != nil {
		h.redirectError(w, r, constants.ErrCodeInvalidToken, "")
		return
	}

	principal, err := claims.Parse(tokens.IDToken)
	if err != nil {
		logger.Error("Failed to decode ID token", zap.Error(err))
		h.redirectError(w, r, constants.ErrCodeInvalidToken, "")
		return
	}

	decision := h.validator.Validate(principal.Email)
	if !decision.Allowed {
		logger.Info("Domain validation failed", zap.String("reason", decision.Reason))
		h.redirectError(w, r, constants.ErrCodeDomainNotAllowed, decision.Reason)
		return
	}
	if !principal.EmailVerified {
		// Unverified emails are admitted by policy, but noted.
		logger.Warn("Email not verified", zap.String("email", maskEmail(principal.Email)))
	}

	cookies.Issue(w, tokens, isSecure(r))
	logger.Info("Sign-in complete", zap.String("email", maskEmail(principal.Email)))
	http.Redirect(w, r, constants.LandingPath+"?auth=success", http.StatusFound)
}

// HandleLogout handles POST /auth/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cookies.Clear(w, isSecure(r))
	utils.WriteJSON(w, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

// HandleRefresh handles POST /auth/token/refresh: redeems the refresh token
// with the identity provider and returns fresh access/ID tokens.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
		Username     string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		utils.WriteError(w, "invalid_request", "Refresh token is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.ExchangeTimeout)
	defer cancel()

	logger.Info("Refreshing tokens", zap.String("username", maskEmail(req.Username)))
	tokens, err := h.provider.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		logger.Error("Token refresh failed", zap.Error(err))
		utils.WriteError(w, "session_expired", "Token refresh failed", http.StatusUnauthorized)
		return
	}

	utils.WriteJSON(w, tokens)
}

// HandleUser handles GET /auth/user. It runs behind RequireSession, which has
// already validated the cookies and parsed the principal.
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		utils.WriteError(w, "unauthorized", "Not authenticated", http.StatusUnauthorized)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"user": map[string]interface{}{
			"sub":            principal.Subject,
			"email":          principal.Email,
			"name":           principal.Name,
			"picture":        principal.Picture,
			"email_verified": principal.EmailVerified,
		},
		"isAuthenticated": true,
	})
}

// redirectError sends the browser to the landing route with a coarse error
// code, never a stack trace and never a secret.
func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, code, message string) {
	target := constants.LandingPath + "?error=" + code
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// redirectURI rebuilds the callback URL exactly as the browser reached the
// server. The identity provider enforces exact redirect-URI matching, so it
// must be derived from the inbound request, proxy headers included.
func redirectURI(r *http.Request) string {
	return fmt.Sprintf("%s://%s%s", scheme(r), r.Host, constants.CallbackPath)
}

func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func isSecure(r *http.Request) bool {
	return scheme(r) == "https"
}

// maskEmail keeps logs useful without logging full addresses.
func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
