package config // package config loads application configuration from environment variables

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; see LoadDotEnv for the optional .env file.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	LogLevel  string // zerolog level name
	LogFormat string // "console" or "json"

	DBDriver string // "mysql" or "pgx", shared by master and tenant stores
	DBHost   string // master store host
	DBPort   int    // master store port, 0 = driver default
	DBName   string // master store database
	DBSchema string // master store schema (postgres search_path)
	DBUser   string // master store user
	DBPass   string // master store password (empty allowed)
	DBSSL    string // postgres sslmode

	MasterPoolMaxOpen int           // size of the shared master pool
	TenantPoolMaxOpen int           // size of each tenant pool, always below the master size
	PoolIdleTimeout   time.Duration // idle connection eviction
	PoolMaxLifetime   time.Duration // connection max lifetime
	DBConnectTimeout  time.Duration // dial + ping timeout

	SessionWindow    time.Duration // liveness window of a session
	SessionHeader    string        // dedicated session token header
	HeartbeatTimeout time.Duration // deadline of a detached heartbeat
	LoginTimeout     time.Duration // deadline of one login attempt

	AllowPlaintextSecrets bool // accept legacy plaintext tenant-local secrets
	ExposeTenantSecret    bool // include the tenant db secret in login responses
}

// LoadDotEnv seeds the environment from a .env file when one exists.
// Variables already set in the environment win.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "console"),

		DBDriver: envStr("DB_DRIVER", "mysql"),
		DBHost:   must("DB_HOST"),
		DBPort:   envInt("DB_PORT", 0),
		DBName:   must("DB_NAME"),
		DBSchema: os.Getenv("DB_SCHEMA"),
		DBUser:   must("DB_USER"),
		DBPass:   os.Getenv("DB_PASS"),
		DBSSL:    envStr("DB_SSLMODE", "disable"),

		MasterPoolMaxOpen: envInt("MASTER_POOL_MAX_OPEN", 20),
		TenantPoolMaxOpen: envInt("TENANT_POOL_MAX_OPEN", 5),
		PoolIdleTimeout:   envDur("POOL_IDLE_TIMEOUT", 30*time.Second),
		PoolMaxLifetime:   envDur("POOL_MAX_LIFETIME", 30*time.Minute),
		DBConnectTimeout:  envDur("DB_CONNECT_TIMEOUT", 5*time.Second),

		SessionWindow:    envDur("SESSION_WINDOW", 15*time.Minute),
		SessionHeader:    envStr("SESSION_HEADER", "X-Session-Token"),
		HeartbeatTimeout: envDur("HEARTBEAT_TIMEOUT", 5*time.Second),
		LoginTimeout:     envDur("LOGIN_TIMEOUT", 10*time.Second),

		AllowPlaintextSecrets: envBool("ALLOW_PLAINTEXT_SECRETS", false),
		ExposeTenantSecret:    envBool("EXPOSE_TENANT_SECRET", true),
	}
	cfg.normalize()
	return cfg
}

// normalize clamps values that would break the pool or session model.
func (c *Config) normalize() {
	if c.MasterPoolMaxOpen < 2 {
		c.MasterPoolMaxOpen = 2
	}
	if c.TenantPoolMaxOpen < 1 {
		c.TenantPoolMaxOpen = 1
	}
	if c.TenantPoolMaxOpen >= c.MasterPoolMaxOpen {
		c.TenantPoolMaxOpen = c.MasterPoolMaxOpen - 1
	}
	if c.SessionWindow <= 0 {
		c.SessionWindow = 15 * time.Minute
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 5 * time.Second
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 10 * time.Second
	}
	if c.SessionHeader == "" {
		c.SessionHeader = "X-Session-Token"
	}
}

// LoadBcryptCost reads BCRYPT_COST, clamped to the range bcrypt accepts.
func LoadBcryptCost() int {
	cost := envInt("BCRYPT_COST", 12)
	if cost < 4 {
		cost = 4
	}
	if cost > 31 {
		cost = 31
	}
	return cost
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}
