package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nagare-io/authgate/internal/auth/claims"
	"github.com/nagare-io/authgate/internal/auth/constants"
	"github.com/nagare-io/authgate/internal/auth/models"
	"github.com/nagare-io/authgate/internal/logger"
	"go.uber.org/zap"
)

type principalContextKey string

// PrincipalContextKey is used to store the authenticated principal in the
// request context.
const PrincipalContextKey principalContextKey = "principal"

// PrincipalFromContext returns the principal injected by RequireSession, or
// nil for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(PrincipalContextKey).(*models.Principal)
	return p
}

// RequireSession validates the session cookies and injects the decoded
// principal into the request context. Anything short of a present, well-formed,
// unexpired ID token is a 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idCookie, err := r.Cookie(constants.CookieIDToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		if _, err := r.Cookie(constants.CookieAccessToken); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}

		principal, err := claims.Parse(idCookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid token format")
			return
		}
		if principal.Expired(time.Now()) {
			writeError(w, http.StatusUnauthorized, "token_expired", "Token expired")
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORSWithOrigins allows credentialed cross-origin requests from the given
// origins. An empty list echoes any origin, matching the development setup of
// the SPA this gateway fronts.
func CORSWithOrigins(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, ok := allowed[origin]
			if origin != "" && (len(allowed) == 0 || ok) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs each inbound request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("Request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote_addr", r.RemoteAddr),
		)
		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="authgate", error="%s", error_description="%s"`, code, message))
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": message,
	}); err != nil {
		logger.Error("Failed to encode error response", zap.Error(err))
	}
}
