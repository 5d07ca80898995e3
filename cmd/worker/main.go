// Package main provides the entrypoint for the EchoSys sanity test worker.
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

	"github.com/echosysai/echosys-go/internal/client"
	"github.com/echosysai/echosys-go/internal/config"
	"github.com/echosysai/echosys-go/internal/resilience"
	"github.com/echosysai/echosys-go/internal/session"
	"github.com/echosysai/echosys-go/internal/telemetry"
	"github.com/echosysai/echosys-go/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "echosys-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting EchoSys sanity test worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientCfg := config.ClientFromEnv()
	workerCfg := config.WorkerFromEnv()
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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	instruments, err := telemetry.NewClientInstruments()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create client instruments")
	}

	monitor := resilience.NewMonitor(client.BackendName)
	api := client.New(client.Config{
		BaseURL:     clientCfg.BaseURL,
		Session:     session.NewMemoryStore(),
		Timeout:     clientCfg.Timeout,
		Monitor:     monitor,
		Instruments: instruments,
		Tracer:      tp.Tracer,
		Logger:      log,
	})

	// The chat endpoint requires a session. Use configured credentials when
	// present, otherwise a throwaway demo account.
	if workerCfg.Email != "" {
		if _, err := api.Login(ctx, workerCfg.Email, workerCfg.Password); err != nil {
			log.Fatal().Err(err).Msg("worker login failed")
		}
		log.Info().Str("email", workerCfg.Email).Msg("worker authenticated")
	} else {
		if _, err := api.RegisterDemo(ctx); err != nil {
			log.Fatal().Err(err).Msg("registering demo account failed")
		}
		log.Info().Msg("worker running on a demo account")
	}

	runner := worker.NewRunner(worker.RunnerConfig{
		Config: worker.RunConfig{
			Concurrency: workerCfg.Concurrency,
			TestTimeout: workerCfg.TestTimeout,
		},
		API:    api,
		Logger: log,
	})

	// Health endpoint for the container runtime.
	port := os.Getenv("ECHOSYS_WORKER_PORT")
	if port == "" {
		port = "8081"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Pub/Sub trigger, when configured.
	if workerCfg.PubSubProject != "" && workerCfg.PubSubSubscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        workerCfg.PubSubProject,
			SubscriptionName: workerCfg.PubSubSubscription,
			Runner:           runner,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Local ticker trigger.
	go func() {
		log.Info().Dur("interval", workerCfg.Interval).Msg("scheduler loop started")
		ticker := time.NewTicker(workerCfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := runner.Run(ctx); err != nil {
					log.Error().Err(err).Msg("sanity test run failed")
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
