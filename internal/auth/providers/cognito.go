package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/nagare-io/authgate/internal/auth/constants"
	"github.com/nagare-io/authgate/internal/config"
	"github.com/nagare-io/authgate/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// CognitoProvider federates with an AWS Cognito user pool over its hosted
// OAuth2 endpoints, optionally forwarding sign-ins to a social identity
// provider (identity_provider hint).
type CognitoProvider struct {
	oauth2Config     *oauth2.Config
	identityProvider string
	verifier         *oidc.IDTokenVerifier
	httpClient       *http.Client
}

// NewCognitoProvider builds the provider from startup configuration. When an
// issuer URL is configured, the pool's discovery document and signing keys are
// fetched once here so ID tokens can be verified on every callback.
func NewCognitoProvider(cfg *config.OAuthConfig) (*CognitoProvider, error) {
	base := cfg.CognitoDomain
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	oauth2Cfg := &oauth2.Config{
		ClientID: cfg.ClientID,
		Scopes:   strings.Fields(cfg.Scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/oauth2/authorize",
			TokenURL:  base + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	p := &CognitoProvider{
		oauth2Config:     oauth2Cfg,
		identityProvider: cfg.IdentityProvider,
		httpClient:       &http.Client{Timeout: constants.ExchangeTimeout},
	}

	if cfg.IssuerURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), constants.ExchangeTimeout)
		defer cancel()
		oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		p.verifier = oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	} else {
		logger.Warn("No issuer URL configured, ID token signatures will not be verified")
	}

	return p, nil
}

func (p *CognitoProvider) AuthCodeURL(state, codeChallenge, redirectURI string) string {
	conf := *p.oauth2Config // copy
	conf.RedirectURL = redirectURI

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if p.identityProvider != "" {
		opts = append(opts, oauth2.SetAuthURLParam("identity_provider", p.identityProvider))
	}
	return conf.AuthCodeURL(state, opts...)
}

func (p *CognitoProvider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	conf := *p.oauth2Config // copy
	conf.RedirectURL = redirectURI

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := conf.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return toTokenResponse(token, ""), nil
}

func (p *CognitoProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return toTokenResponse(token, refreshToken), nil
}

// VerifyIDToken validates the token signature against the pool's signing keys.
// Without a configured issuer it degrades to accepting the token, logged once
// at startup.
func (p *CognitoProvider) VerifyIDToken(ctx context.Context, rawIDToken string) error {
	if p.verifier == nil {
		return nil
	}
	if _, err := p.verifier.Verify(ctx, rawIDToken); err != nil {
		logger.Error("ID token verification failed", zap.Error(err))
		return fmt.Errorf("failed to verify ID token: %w", err)
	}
	return nil
}

// toTokenResponse flattens an oauth2 token into the wire shape. Cognito does
// not rotate refresh tokens, so fallbackRefresh keeps the original one on
// refresh responses.
func toTokenResponse(token *oauth2.Token, fallbackRefresh string) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresIn:    int(token.ExpiresIn),
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = fallbackRefresh
	}
	if resp.TokenType == "" {
		resp.TokenType = "Bearer"
	}
	if resp.ExpiresIn <= 0 && !token.Expiry.IsZero() {
		resp.ExpiresIn = int(time.Until(token.Expiry).Seconds())
	}
	if resp.ExpiresIn <= 0 {
		resp.ExpiresIn = constants.DefaultExpiresIn
	}
	return resp
}
