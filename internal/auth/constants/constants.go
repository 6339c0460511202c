package constants

import "time"

// Cookie names for the three session tokens.
const (
	CookieAccessToken  = "access_token"
	CookieIDToken      = "id_token"
	CookieRefreshToken = "refresh_token"
)

const (
	// DefaultExpiresIn is used when the token response omits expires_in.
	DefaultExpiresIn = 3600

	// RefreshCookieMaxAge is fixed at 30 days regardless of the access token
	// lifetime: refresh tokens outlive access tokens by policy.
	RefreshCookieMaxAge = 30 * 24 * 60 * 60

	// PendingTTL is how long an unconsumed login attempt stays valid.
	PendingTTL = 10 * time.Minute

	// ExchangeTimeout bounds every round trip to the identity provider.
	ExchangeTimeout = 10 * time.Second
)

// Machine-readable error codes carried on failure redirects.
const (
	ErrCodeOAuth             = "oauth_error"
	ErrCodeMissingParameters = "missing_parameters"
	ErrCodeInvalidState      = "invalid_state"
	ErrCodeTokenExchange     = "token_exchange_failed"
	ErrCodeDomainNotAllowed  = "domain_not_allowed"
	ErrCodeInvalidToken      = "invalid_token"
)

// Paths the callback redirects the browser to.
const (
	LandingPath  = "/"
	CallbackPath = "/auth/callback"
)
