package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/parley-chat/parley/internal/adapters/http"
	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/identity"
	"github.com/parley-chat/parley/internal/rooms"
	"github.com/parley-chat/parley/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
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

	producer := bus.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	service := rooms.NewService(st, producer, idm)
	ctl := router.NewRoomsController(service)
	users := router.NewUsersController(st, idm)

	r := router.SetupRoomsRouter(&cfg.Rooms, ctl, users, router.AuthMiddleware(idm, st))
	addr := fmt.Sprintf(":%d", cfg.Rooms.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("rooms service started")
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
