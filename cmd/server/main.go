package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/config"
	"github.com/iliyamo/tenant-session-gateway/internal/database"
	"github.com/iliyamo/tenant-session-gateway/internal/handler"
	"github.com/iliyamo/tenant-session-gateway/internal/logger"
	"github.com/iliyamo/tenant-session-gateway/internal/middleware"
	"github.com/iliyamo/tenant-session-gateway/internal/model"
	"github.com/iliyamo/tenant-session-gateway/internal/queue"
	"github.com/iliyamo/tenant-session-gateway/internal/repository"
	"github.com/iliyamo/tenant-session-gateway/internal/router"
	"github.com/iliyamo/tenant-session-gateway/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	dialect, err := database.ParseDialect(cfg.DBDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DB_DRIVER")
	}

	ctx := context.Background()

	masterPC := database.PoolConfig{
		MaxOpen:        cfg.MasterPoolMaxOpen,
		MaxIdle:        cfg.MasterPoolMaxOpen / 2,
		IdleTimeout:    cfg.PoolIdleTimeout,
		MaxLifetime:    cfg.PoolMaxLifetime,
		ConnectTimeout: cfg.DBConnectTimeout,
		SSLMode:        cfg.DBSSL,
	}
	tenantPC := masterPC
	tenantPC.MaxOpen = cfg.TenantPoolMaxOpen
	tenantPC.MaxIdle = 1

	master, err := database.Open(ctx, dialect, model.ConnParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Database: cfg.DBName,
		Schema:   cfg.DBSchema,
		User:     cfg.DBUser,
		Secret:   cfg.DBPass,
	}, masterPC)
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.DBHost).Msg("master store unreachable")
	}
	registry := database.NewRegistry(dialect, master, tenantPC)

	var events service.EventPublisher = queue.NopPublisher{}
	var publisher *queue.Publisher
	if audit := config.LoadAuditConfig(); audit.Enabled {
		publisher = queue.NewPublisher(audit)
		events = publisher
	}

	ledger, err := service.NewSessionLedger(repository.NewSessionRepo(master, dialect), cfg.SessionWindow)
	if err != nil {
		log.Fatal().Err(err).Msg("session ledger")
	}
	auth, err := service.NewAuthenticator(service.Deps{
		Tenants:  repository.NewTenantRepo(master, dialect),
		Masters:  repository.NewUserRepo(master, dialect),
		Locals:   repository.NewTenantUserRepo(registry),
		Sessions: ledger,
		Events:   events,
	},
		service.WithPlaintextSecrets(cfg.AllowPlaintextSecrets),
		service.WithTenantSecret(cfg.ExposeTenantSecret),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("authenticator")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.SessionActivity(ledger, cfg.SessionHeader, cfg.HeartbeatTimeout))

	rdb := config.NewRedisClient(ctx)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, cfg.SessionHeader)

	router.RegisterRoutes(e, &handler.ReadyHandler{Master: master, Pools: registry})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, auth, ledger, events), ledger, limiter)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("driver", string(dialect)).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if publisher != nil {
		if err := publisher.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("audit publisher did not flush")
		}
	}
	if err := registry.CloseAll(); err != nil {
		log.Warn().Err(err).Msg("closing pools")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
