package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// RequireAuthority only lets through sessions vouched for by one of the
// given authorities. It must run after RequireSession.
func RequireAuthority(authorities ...model.Authority) echo.MiddlewareFunc {
	allowed := make(map[model.Authority]bool, len(authorities))
	for _, a := range authorities {
		allowed[a] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, ok := c.Get(CtxAuthority).(model.Authority)
			if !ok || !allowed[a] {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "forbidden"})
			}
			return next(c)
		}
	}
}
