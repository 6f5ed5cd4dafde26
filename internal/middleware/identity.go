package middleware

// identity.go holds the token extraction shared by the session middlewares
// and the logout handler.

import (
	"net/http"
	"strings"
)

// DefaultSessionHeader is the dedicated session header when none is configured.
const DefaultSessionHeader = "X-Session-Token"

// SessionToken returns the session token of r: the dedicated header first,
// then an `Authorization: Bearer` header. It is empty when neither is set.
func SessionToken(r *http.Request, header string) string {
	if header == "" {
		header = DefaultSessionHeader
	}
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
