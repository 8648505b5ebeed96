package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/parley-chat/parley/internal/adapters/http"
	"github.com/parley-chat/parley/internal/adapters/ws"
	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/core"
	"github.com/parley-chat/parley/internal/gateway"
	"github.com/parley-chat/parley/internal/identity"
	"github.com/parley-chat/parley/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open room directory")
	}

	idm := identity.NewManager(identity.Config{
		Secret:    cfg.Auth.Secret,
		Issuer:    cfg.Auth.Issuer,
		AccessTTL: cfg.Auth.AccessTTL,
		InviteTTL: cfg.Auth.InviteTTL,
	})

	instanceID := uuid.NewString()
	producer := bus.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	hub := core.NewHub()
	gw := gateway.New(instanceID, hub, idm, st, producer)

	// One consumption loop per instance; the instance-unique group id makes
	// every instance observe every record.
	consumer := bus.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, "gateway-"+instanceID, gw.HandleBusEvent)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("bus consumer stopped")
			cancel()
		}
	}()

	limiter := ws.NewRateLimiter(cfg.Gateway.RateLimit, cfg.Gateway.RateInterval)
	chat := ws.NewController(gw, limiter, cfg.Gateway.ReadLimit)

	r := router.SetupGatewayRouter(ctx, &cfg.Gateway, chat)
	addr := fmt.Sprintf(":%d", cfg.Gateway.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("instance", instanceID).Msg("gateway started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
