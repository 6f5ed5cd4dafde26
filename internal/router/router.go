package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-session-gateway/internal/handler"
	"github.com/iliyamo/tenant-session-gateway/internal/middleware"
)

// RegisterRoutes registers the probes, which need no session.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
}

// RegisterAuth registers the session endpoints under /auth. limiter guards
// the whole group and may be nil.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, sessions middleware.SessionLookup, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/login", a.Login)
	// logout never requires a live session so that it stays idempotent
	g.POST("/logout", a.Logout)
	g.GET("/session", a.Session)
	g.GET("/me", a.Me, middleware.RequireSession(sessions, a.Header))
}
