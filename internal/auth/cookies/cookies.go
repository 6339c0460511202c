// Package cookies issues and clears the HTTP-only session cookies.
package cookies

import (
	"net/http"

	"github.com/nagare-io/authgate/internal/auth/constants"
	"github.com/nagare-io/authgate/internal/auth/providers"
)

// Issue sets the three session cookies. The access and ID cookies live as long
// as the access token; the refresh cookie always lives 30 days. secure must
// reflect whether the request actually arrived over HTTPS.
func Issue(w http.ResponseWriter, tokens *providers.TokenResponse, secure bool) {
	expiresIn := tokens.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = constants.DefaultExpiresIn
	}

	http.SetCookie(w, newCookie(constants.CookieAccessToken, tokens.AccessToken, expiresIn, secure))
	http.SetCookie(w, newCookie(constants.CookieIDToken, tokens.IDToken, expiresIn, secure))
	if tokens.RefreshToken != "" {
		http.SetCookie(w, newCookie(constants.CookieRefreshToken, tokens.RefreshToken, constants.RefreshCookieMaxAge, secure))
	}
}

// Clear removes all three session cookies. Clearing requires the exact
// attributes used at set-time, notably Path and SameSite.
func Clear(w http.ResponseWriter, secure bool) {
	for _, name := range []string{
		constants.CookieAccessToken,
		constants.CookieIDToken,
		constants.CookieRefreshToken,
	} {
		http.SetCookie(w, newCookie(name, "", -1, secure))
	}
}

func newCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
