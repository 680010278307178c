package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"serverboi-provisioner/config"
	"serverboi-provisioner/health"
	"serverboi-provisioner/metrics"
	"serverboi-provisioner/queues"
	qpubsub "serverboi-provisioner/queues/pubsub"
	"serverboi-provisioner/tracing"
	"serverboi-provisioner/wiring"

	"github.com/rs/zerolog/log"
)

var version = "source"

func main() {
	// Load config
	cfg := config.Load()
	wiring.SetLogger(cfg.LogLevel)
	log.Info().Msgf("Starting serverboi-provisioner version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	// Preflight required configuration
	if cfg.GoogleProjectID == "" {
		log.Fatal().Msg("missing Google project id; set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_PROJECT_ID or PROVISIONER_PUBSUB_PROJECT_ID")
	}
	if cfg.Subscription == "" {
		log.Fatal().Msg("missing Pub/Sub subscription; set PROVISION_REQUEST_SUBSCRIPTION or PROVISIONER_PUBSUB_SUBSCRIPTION")
	}

	// Context and shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "serverboi-provisioner", cfg.OTelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	var publisher queues.Publisher
	if cfg.ResultTopic != "" {
		publisher = qpubsub.NewPublisher(cfg.GoogleProjectID, cfg.ResultTopic, cfg.CredentialsFile)
	}
	controller, err := wiring.Controller(ctx, cfg, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build provisioner")
	}

	// Metrics and health HTTP server
	var receiving atomic.Bool
	mux := http.NewServeMux()
	metrics.Register(mux)
	health.Register(mux, func() error {
		if !receiving.Load() {
			return errors.New("subscriber not started")
		}
		return nil
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting metrics/health server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	if cfg.CredentialsFile != "" {
		log.Info().Str("credsFile", cfg.CredentialsFile).Msg("using explicit Google credentials file")
	} else {
		log.Info().Msg("using default Google credentials (ambient)")
	}
	subscriber := qpubsub.NewSubscriber(cfg.GoogleProjectID, cfg.Subscription, cfg.CredentialsFile)

	// Start subscriber loop
	go func() {
		log.Info().Str("subscription", cfg.Subscription).Msg("starting subscriber loop")
		receiving.Store(true)
		if err := subscriber.Start(ctx, controller.Handle); err != nil {
			// Non-recoverable: if we can't receive from Pub/Sub, terminate the process
			log.Fatal().Err(err).Msg("subscriber exited with fatal error; shutting down")
		}
		receiving.Store(false)
	}()

	// Block until shutdown
	<-ctx.Done()
	log.Info().Int("inFlight", controller.InFlight().Len()).Interface("byGame", controller.InFlight().ByGame()).Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
