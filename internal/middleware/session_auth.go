package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// SessionLookup resolves a token to a live session; *service.SessionLedger implements it.
type SessionLookup interface {
	Lookup(ctx context.Context, token string) (model.Session, bool)
}

// Context keys set by RequireSession.
const (
	CtxSession   = "session"
	CtxTenantID  = "tenant_id"
	CtxUserID    = "user_id"
	CtxAuthority = "authority"
)

// RequireSession rejects requests whose token does not name a live session
// with 401 and otherwise stores the session in the echo context.
func RequireSession(l SessionLookup, header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := SessionToken(c.Request(), header)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "missing session token"})
			}
			s, ok := l.Lookup(c.Request().Context(), token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "session expired or invalid"})
			}
			c.Set(CtxSession, s)
			c.Set(CtxTenantID, s.TenantID)
			c.Set(CtxUserID, s.UserID)
			c.Set(CtxAuthority, s.Authority)
			return next(c)
		}
	}
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(c echo.Context) (model.Session, bool) {
	s, ok := c.Get(CtxSession).(model.Session)
	return s, ok
}
