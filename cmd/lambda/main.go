// Command lambda runs the provision stage as a Step Functions task: the
// request mapping comes in, the augmented mapping goes out, and a failure
// fails the state.
package main

import (
	"context"

	"serverboi-provisioner/config"
	"serverboi-provisioner/provisioner"
	"serverboi-provisioner/queues"
	"serverboi-provisioner/tracing"
	"serverboi-provisioner/wiring"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"
)

var version = "source"

type handler struct {
	controller *provisioner.Controller
	flush      func(context.Context) error
}

func (h *handler) invoke(ctx context.Context, req queues.ProvisionRequest) (*queues.ProvisionResult, error) {
	defer func() {
		if err := h.flush(ctx); err != nil {
			log.Warn().Err(err).Msg("lambda: span flush failed")
		}
	}()
	return h.controller.Provision(ctx, &req)
}

func main() {
	cfg := config.Load()
	wiring.SetLogger(cfg.LogLevel)
	log.Info().Msgf("Starting serverboi-provisioner lambda version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	ctx := context.Background()
	shutdownTracing, err := tracing.Setup(ctx, "serverboi-provisioner", cfg.OTelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}
	controller, err := wiring.Controller(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build provisioner")
	}

	h := &handler{controller: controller, flush: tracing.Flush}
	lambda.StartWithOptions(h.invoke, lambda.WithEnableSIGTERM(func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("tracing shutdown failed")
		}
	}))
}
