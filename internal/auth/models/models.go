package models

import "time"

// TokenSet is the bundle of ID, access and refresh tokens issued for one
// authenticated session. It is always replaced as a whole: a partial update
// must never leave tokens belonging to different principals.
type TokenSet struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Valid reports whether the access token is present and unexpired.
func (t TokenSet) Valid(now time.Time) bool {
	return t.AccessToken != "" && !t.ExpiresAt.IsZero() && now.Before(t.ExpiresAt)
}

// Principal is the identity derived from an ID token payload. It is parsed on
// demand and never persisted separately from the token it came from.
type Principal struct {
	Subject       string
	Email         string
	Name          string
	GivenName     string
	FamilyName    string
	Picture       string
	EmailVerified bool
	ExpiresAt     time.Time
}

// Expired reports whether the ID token carried an exp claim in the past.
func (p *Principal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(now)
}
