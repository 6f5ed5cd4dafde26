package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// Heartbeater records activity on a session; *service.SessionLedger implements it.
type Heartbeater interface {
	Heartbeat(ctx context.Context, token string)
}

// SessionActivity refreshes the presented session on every request without
// waiting for the store. It never rejects a request: requests without a
// token pass through untouched and gating is left to RequireSession or the
// handler.
func SessionActivity(h Heartbeater, header string, timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := SessionToken(c.Request(), header); token != "" {
				// detached from the request so the heartbeat outlives the response
				ctx := context.WithoutCancel(c.Request().Context())
				go func() {
					hbCtx, cancel := context.WithTimeout(ctx, timeout)
					defer cancel()
					h.Heartbeat(hbCtx, token)
				}()
			}
			return next(c)
		}
	}
}
