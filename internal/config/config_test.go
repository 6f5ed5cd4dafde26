package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "master")
	t.Setenv("DB_USER", "app")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()
	require.Equal(t, "mysql", cfg.DBDriver)
	require.Zero(t, cfg.DBPort)
	require.Equal(t, 20, cfg.MasterPoolMaxOpen)
	require.Equal(t, 5, cfg.TenantPoolMaxOpen)
	require.Equal(t, 30*time.Second, cfg.PoolIdleTimeout)
	require.Equal(t, 15*time.Minute, cfg.SessionWindow)
	require.Equal(t, "X-Session-Token", cfg.SessionHeader)
	require.False(t, cfg.AllowPlaintextSecrets)
	require.True(t, cfg.ExposeTenantSecret)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("SESSION_WINDOW", "30m")
	t.Setenv("ALLOW_PLAINTEXT_SECRETS", "yes")
	t.Setenv("SESSION_HEADER", "X-Empresa-Session")

	cfg := Load()
	require.Equal(t, "pgx", cfg.DBDriver)
	require.Equal(t, 6432, cfg.DBPort)
	require.Equal(t, 30*time.Minute, cfg.SessionWindow)
	require.True(t, cfg.AllowPlaintextSecrets)
	require.Equal(t, "X-Empresa-Session", cfg.SessionHeader)
}

func TestTenantPoolStaysBelowMaster(t *testing.T) {
	setRequired(t)
	t.Setenv("MASTER_POOL_MAX_OPEN", "8")
	t.Setenv("TENANT_POOL_MAX_OPEN", "12")

	cfg := Load()
	require.Equal(t, 8, cfg.MasterPoolMaxOpen)
	require.Equal(t, 7, cfg.TenantPoolMaxOpen)
}

func TestLoadRateLimitConfigNormalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	require.Equal(t, 1, rl.Capacity)
	require.Equal(t, 1, rl.RefillTokens)
	require.Equal(t, 2*time.Second, rl.RefillInterval)
	require.Equal(t, 10*time.Second, rl.TTL)
	require.Equal(t, "ip_route", rl.KeyStrategy)
}

func TestLoadAuditConfig(t *testing.T) {
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
	t.Setenv("AUDIT_BUFFER", "-3")

	a := LoadAuditConfig()
	require.False(t, a.Enabled)
	require.Equal(t, "amqp://u:p@broker:5672/", a.URL)
	require.Equal(t, "session.audit", a.Queue)
	require.Equal(t, 1, a.Buffer)
	require.Equal(t, 3*time.Second, a.DialTimeout)
}

func TestLoadBcryptCost(t *testing.T) {
	t.Setenv("BCRYPT_COST", "")
	require.Equal(t, 12, LoadBcryptCost())
	t.Setenv("BCRYPT_COST", "2")
	require.Equal(t, 4, LoadBcryptCost())
	t.Setenv("BCRYPT_COST", "40")
	require.Equal(t, 31, LoadBcryptCost())
}
