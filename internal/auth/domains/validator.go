// Package domains enforces the email domain allow-list on sign-in.
package domains

import (
	"fmt"
	"strings"
)

// Decision is the outcome of an allow-list check. It is produced fresh per
// callback and never persisted.
type Decision struct {
	Allowed bool
	Reason  string
}

// Validator holds the configured allow-list. The zero-value (empty) validator
// denies every email: an unset allow-list is a misconfiguration, never
// allow-all.
type Validator struct {
	allowed map[string]struct{}
}

// NewValidator builds a validator from the configured domain list. Entries are
// trimmed and lower-cased; empties are dropped.
func NewValidator(allowedDomains []string) *Validator {
	allowed := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allowed[d] = struct{}{}
		}
	}
	return &Validator{allowed: allowed}
}

// Validate checks the domain of email against the allow-list. The domain is
// everything after the last '@', compared case-insensitively.
func (v *Validator) Validate(email string) Decision {
	if len(v.allowed) == 0 {
		return Decision{Allowed: false, Reason: "Configuration error: Allowed email domains not set."}
	}
	if email == "" {
		return Decision{Allowed: false, Reason: "Email not found in token"}
	}

	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	if _, ok := v.allowed[domain]; ok {
		return Decision{Allowed: true, Reason: "Email domain allowed"}
	}
	return Decision{Allowed: false, Reason: fmt.Sprintf("Access denied. Email domain '%s' not authorized.", domain)}
}
