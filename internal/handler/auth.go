package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/config"
	"github.com/iliyamo/tenant-session-gateway/internal/middleware"
	"github.com/iliyamo/tenant-session-gateway/internal/model"
	"github.com/iliyamo/tenant-session-gateway/internal/queue"
	"github.com/iliyamo/tenant-session-gateway/internal/service"
)

// Authenticator runs a login; *service.Authenticator implements it.
type Authenticator interface {
	Login(ctx context.Context, req service.LoginRequest) (service.LoginResult, error)
}

// SessionManager is the part of the ledger the auth endpoints use.
type SessionManager interface {
	Lookup(ctx context.Context, token string) (model.Session, bool)
	IsValid(ctx context.Context, token string) bool
	Invalidate(ctx context.Context, token string)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     Authenticator
	Sessions SessionManager
	Events   service.EventPublisher
	Header   string        // dedicated session header
	Timeout  time.Duration // per-login deadline
}

// NewAuthHandler builds the handler from config; a nil ev drops audit events.
func NewAuthHandler(cfg config.Config, a Authenticator, s SessionManager, ev service.EventPublisher) *AuthHandler {
	if ev == nil {
		ev = queue.NopPublisher{}
	}
	return &AuthHandler{Auth: a, Sessions: s, Events: ev, Header: cfg.SessionHeader, Timeout: cfg.LoginTimeout}
}

// ----- DTOs -----

type loginReq struct {
	CNPJ      string `json:"cnpj"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type loginResp struct {
	Success      bool                 `json:"success"`
	Token        string               `json:"token"`
	User         service.UserSummary  `json:"user"`
	TenantConfig service.TenantConfig `json:"tenantConfig"`
}

type failResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const msgBadCredentials = "invalid credentials"

// Login: resolve tenant, authenticate and open a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, failResp{Message: "invalid body"})
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, service.LoginRequest{
		TaxID:     req.CNPJ,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Secret:    req.Password,
		ClientIP:  c.RealIP(),
	})
	if err != nil {
		status, msg := loginFailure(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("login failed")
		}
		return c.JSON(status, failResp{Message: msg})
	}

	return c.JSON(http.StatusOK, loginResp{
		Success:      true,
		Token:        res.Token,
		User:         res.User,
		TenantConfig: res.TenantConfig,
	})
}

// loginFailure maps a login error to a status and a client-facing message.
// Unknown tenants and bad credentials share one answer.
func loginFailure(err error) (int, string) {
	var limitErr *service.SessionLimitError
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		return http.StatusBadRequest, "cnpj, user identifier and password are required"
	case errors.Is(err, service.ErrAuthenticationFailed), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgBadCredentials
	case errors.As(err, &limitErr):
		return http.StatusForbidden, fmt.Sprintf("session limit reached: at most %d concurrent sessions", limitErr.Limit)
	case errors.Is(err, service.ErrTenantUnreachable):
		return http.StatusServiceUnavailable, "service temporarily unavailable, try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// Logout always answers success, known token or not.
func (h *AuthHandler) Logout(c echo.Context) error {
	if token := middleware.SessionToken(c.Request(), h.Header); token != "" {
		ctx := c.Request().Context()
		s, live := h.Sessions.Lookup(ctx, token)
		h.Sessions.Invalidate(ctx, token)
		if live {
			ev := queue.NewSessionEvent(queue.Logout)
			ev.TenantID, ev.UserID, ev.Authority = s.TenantID, s.UserID, string(s.Authority)
			ev.ClientIP = c.RealIP()
			h.Events.Publish(ctx, ev)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Session reports whether the presented token names a live session.
func (h *AuthHandler) Session(c echo.Context) error {
	token := middleware.SessionToken(c.Request(), h.Header)
	valid := token != "" && h.Sessions.IsValid(c.Request().Context(), token)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "valid": valid})
}

// Me describes the session placed in the context by RequireSession.
func (h *AuthHandler) Me(c echo.Context) error {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, failResp{Message: "session expired or invalid"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"session": echo.Map{
			"tenantId":     s.TenantID,
			"userId":       s.UserID,
			"authority":    s.Authority,
			"lastActivity": s.LastActivity,
			"createdAt":    s.CreatedAt,
		},
	})
}
