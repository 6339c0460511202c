// Package pkce generates the per-login Proof Key for Code Exchange material.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Method is the only code challenge method the gateway uses.
const Method = "S256"

// tokenLength is the number of random bytes behind the verifier and the state
// token. 32 bytes gives 256 bits of entropy.
const tokenLength = 32

// Challenge holds the PKCE pair and the CSRF state token for one login attempt.
type Challenge struct {
	Verifier  string
	Challenge string
	State     string
}

// Generate produces a fresh verifier/challenge pair and state token.
// It fails, and the login attempt with it, if secure randomness is
// unavailable: no login may be issued without verified entropy.
func Generate() (*Challenge, error) {
	verifier, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	state, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	sum := sha256.Sum256([]byte(verifier))
	return &Challenge{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
		State:     state,
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
