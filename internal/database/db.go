package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// PoolConfig sizes one database/sql pool.
type PoolConfig struct {
	MaxOpen        int
	MaxIdle        int
	IdleTimeout    time.Duration // idle connections are evicted after this
	MaxLifetime    time.Duration
	ConnectTimeout time.Duration // dial + ping
	SSLMode        string        // postgres only
}

// Open connects to the database described by p and verifies the connection.
func Open(ctx context.Context, d Dialect, p model.ConnParams, pc PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), d.DSN(p, pc))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(pc.MaxOpen)
	maxIdle := pc.MaxIdle
	if maxIdle <= 0 || maxIdle > pc.MaxOpen {
		maxIdle = pc.MaxOpen
	}
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxIdleTime(pc.IdleTimeout)
	db.SetConnMaxLifetime(pc.MaxLifetime)

	// Ping with timeout
	timeout := pc.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
