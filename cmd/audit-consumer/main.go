package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/config"
	"github.com/iliyamo/tenant-session-gateway/internal/logger"
	"github.com/iliyamo/tenant-session-gateway/internal/queue"
)

func main() {
	config.LoadDotEnv()
	logger.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAuditConfig()
	log.Info().Str("queue", cfg.Queue).Str("path", cfg.LogPath).Msg("audit-consumer: starting")
	if err := queue.RunAuditConsumer(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("audit-consumer: stopped")
	}
	log.Info().Msg("audit-consumer: bye")
}
