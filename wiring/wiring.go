// Package wiring builds the production collaborators shared by the worker
// and the Lambda entry point.
package wiring

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"serverboi-provisioner/bootstrap"
	"serverboi-provisioner/catalog"
	"serverboi-provisioner/cloud/awscloud"
	"serverboi-provisioner/config"
	"serverboi-provisioner/notify/discord"
	"serverboi-provisioner/provisioner"
	"serverboi-provisioner/queues"
	"serverboi-provisioner/store/dynamo"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogger applies the configured level. DEBUG in the environment wins.
func SetLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		if err != nil {
			log.Warn().Str("level", level).Msg("wiring: unknown log level, using info")
		}
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Controller loads the AWS home-region config and the build catalog, then
// assembles a provisioner.Controller. publisher may be nil when the caller
// forwards results itself.
func Controller(ctx context.Context, cfg *config.Config, publisher queues.Publisher) (*provisioner.Controller, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ControllerWithAWS(awsCfg, cfg, publisher)
}

// ControllerWithAWS is Controller with an already loaded AWS config.
func ControllerWithAWS(awsCfg aws.Config, cfg *config.Config, publisher queues.Publisher) (*provisioner.Controller, error) {
	builds, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load build catalog: %w", err)
	}
	log.Info().Strs("games", builds.Games()).Str("path", cfg.CatalogPath).Msg("wiring: build catalog loaded")

	router, err := bootstrap.NewTemplateRouter(builds)
	if err != nil {
		return nil, fmt.Errorf("build command router: %w", err)
	}

	notifier, err := discord.New(cfg.DiscordBotToken)
	if err != nil {
		return nil, err
	}

	db := dynamodb.NewFromConfig(awsCfg)
	return provisioner.NewController(provisioner.Deps{
		Users:     dynamo.NewUserStore(db, cfg.UserTable),
		Servers:   dynamo.NewServerRegistry(db, cfg.ServerTable),
		Delegator: awscloud.NewDelegator(awsCfg, cfg.RoleName),
		Profiles:  builds,
		Router:    router,
		Notifier:  notifier,
		Publisher: publisher,
	}), nil
}
