// Package claims extracts identity claims from ID token payloads.
package claims

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nagare-io/authgate/internal/auth/models"
)

// Parse decodes the ID token payload without verifying its signature.
// Signature verification, when configured, happens separately against the
// provider's published keys before any claim is trusted.
func Parse(rawIDToken string) (*models.Principal, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(rawIDToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("invalid token format: %w", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	p := &models.Principal{
		Subject:    stringClaim(mc, "sub"),
		Email:      stringClaim(mc, "email"),
		Name:       stringClaim(mc, "name"),
		GivenName:  stringClaim(mc, "given_name"),
		FamilyName: stringClaim(mc, "family_name"),
		Picture:    stringClaim(mc, "picture"),
	}

	if v, ok := mc["email_verified"].(bool); ok {
		p.EmailVerified = v
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}

	// Cognito-federated Google accounts sometimes omit the name claim.
	if p.Name == "" && (p.GivenName != "" || p.FamilyName != "") {
		p.Name = strings.TrimSpace(p.GivenName + " " + p.FamilyName)
	}

	return p, nil
}

func stringClaim(mc jwt.MapClaims, key string) string {
	if v, ok := mc[key].(string); ok {
		return v
	}
	return ""
}
