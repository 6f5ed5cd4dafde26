package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Health is the liveness probe. It returns "ok" while the process serves HTTP.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PoolCounter is satisfied by *database.Registry.
type PoolCounter interface {
	Len() int
}

// ReadyHandler is the readiness probe backed by the master pool.
type ReadyHandler struct {
	Master Pinger
	Pools  PoolCounter
}

// Ready pings the master store: 200 when it answers, 503 otherwise.
func (h *ReadyHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	pools := 0
	if h.Pools != nil {
		pools = h.Pools.Len()
	}
	if err := h.Master.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("readiness: master store ping failed")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "tenant_pools": pools})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready", "tenant_pools": pools})
}
