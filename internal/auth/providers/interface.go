package providers

import "context"

// TokenResponse mirrors the identity provider's token endpoint payload.
type TokenResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Provider abstracts the external identity provider the gateway federates
// with.
type Provider interface {
	// AuthCodeURL builds the authorization URL for one login attempt. The
	// code verifier never appears in it, only the derived challenge.
	AuthCodeURL(state, codeChallenge, redirectURI string) string

	// ExchangeCode redeems an authorization code. redirectURI must exactly
	// match the one used at redirect time.
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error)

	// RefreshToken obtains fresh access/ID tokens for a refresh token.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// VerifyIDToken checks the token signature against the provider's
	// published keys. Implementations without a configured issuer accept
	// every token and rely on the caller's decode-only handling.
	VerifyIDToken(ctx context.Context, rawIDToken string) error
}
