// Package main provides the entrypoint for the EchoSys development API
// server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/echosysai/echosys-go/internal/config"
	"github.com/echosysai/echosys-go/internal/database"
	"github.com/echosysai/echosys-go/internal/devserver"
	"github.com/echosysai/echosys-go/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "echosys-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting EchoSys development API")

	ctx := context.Background()
	serverCfg := config.ServerFromEnv()
	telemetryCfg := config.TelemetryFromEnv()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    telemetryCfg.Environment,
		OTLPEndpoint:   telemetryCfg.OTLPEndpoint,
		Enabled:        telemetryCfg.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Select the backing store.
	var store devserver.Store
	switch serverCfg.Store {
	case "postgres":
		dbConfig := config.DatabaseFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		pgStore := devserver.NewPostgresStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		store = pgStore
		log.Info().
			Str("host", dbConfig.Host).
			Str("port", dbConfig.Port).
			Str("database", dbConfig.Name).
			Msg("database connected")
	default:
		store = devserver.NewSeededMemoryStore()
		log.Info().Msg("using seeded in-memory store")
	}

	if serverCfg.JWTSigningKey == "local-dev-signing-key-change-in-production" {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	srv := devserver.NewServer(devserver.Config{
		Logger: log,
		Store:  store,
		Auth: devserver.NewAuthenticator(devserver.AuthConfig{
			SigningKey: serverCfg.JWTSigningKey,
			Lifetime:   serverCfg.TokenLifetime,
		}),
		AuthRateLimit: serverCfg.AuthRateLimit,
	})

	server := &http.Server{
		Addr:         ":" + serverCfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
