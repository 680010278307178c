package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	DefaultUserTable   = "ServerBoi-User-List"
	DefaultServerTable = "ServerBoi-Server-List"
	DefaultRegion      = "us-west-2"
	DefaultRoleName    = "ServerBoi-Resource.Assumed-Role"
)

type Config struct {
	Subscription    string
	ResultTopic     string
	GoogleProjectID string
	CredentialsFile string

	UserTable   string
	ServerTable string
	AWSRegion   string
	RoleName    string

	CatalogPath     string
	DiscordBotToken string

	MetricsPort  int
	LogLevel     string
	OTelEndpoint string
}

func Load() *Config {
	cfg := &Config{
		Subscription:    strings.TrimSpace(getEnv("PROVISION_REQUEST_SUBSCRIPTION", os.Getenv("PROVISIONER_PUBSUB_SUBSCRIPTION"))),
		ResultTopic:     strings.TrimSpace(getEnv("PROVISION_RESULT_TOPIC", os.Getenv("PROVISIONER_PUBSUB_TOPIC"))),
		CredentialsFile: strings.TrimSpace(firstNonEmpty(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), os.Getenv("PROVISIONER_GSA_CREDENTIALS"))),
		UserTable:       strings.TrimSpace(getEnv("USER_TABLE", DefaultUserTable)),
		ServerTable:     strings.TrimSpace(getEnv("SERVER_TABLE", DefaultServerTable)),
		AWSRegion:       strings.TrimSpace(getEnv("AWS_REGION", DefaultRegion)),
		RoleName:        strings.TrimSpace(getEnv("PROVISIONER_ROLE_NAME", DefaultRoleName)),
		CatalogPath:     strings.TrimSpace(getEnv("BUILD_CATALOG_PATH", "")),
		DiscordBotToken: strings.TrimSpace(getEnv("DISCORD_BOT_TOKEN", "")),
		MetricsPort:     getEnvInt("PROVISIONER_METRICS_PORT", 8080),
		LogLevel:        strings.TrimSpace(getEnv("PROVISIONER_LOG_LEVEL", "info")),
		OTelEndpoint:    strings.TrimSpace(getEnv("PROVISIONER_OTEL_ENDPOINT", "")),
	}

	cfg.GoogleProjectID = getGoogleProjectID(cfg.CredentialsFile, strings.TrimSpace(getEnv("PROVISIONER_PUBSUB_PROJECT_ID", "")))
	if cfg.GoogleProjectID == "" {
		log.Warn().Msg("Google project ID not resolved; set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_PROJECT_ID or PROVISIONER_PUBSUB_PROJECT_ID")
	}
	if cfg.Subscription == "" {
		log.Warn().Msg("Pub/Sub subscription not set; set PROVISION_REQUEST_SUBSCRIPTION or PROVISIONER_PUBSUB_SUBSCRIPTION")
	}
	if cfg.ResultTopic == "" {
		log.Warn().Msg("Pub/Sub topic not set; results will not be forwarded. Set PROVISION_RESULT_TOPIC or PROVISIONER_PUBSUB_TOPIC")
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.MetricsPort))
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"projectID":           c.GoogleProjectID,
		"requestSubscription": c.Subscription,
		"resultTopic":         c.ResultTopic,
		"userTable":           c.UserTable,
		"serverTable":         c.ServerTable,
		"awsRegion":           c.AWSRegion,
		"roleName":            c.RoleName,
		"catalogPath":         c.CatalogPath,
		"metricsPort":         c.MetricsPort,
		"logLevel":            c.LogLevel,
		"tracing":             c.OTelEndpoint != "",
		"credentialsProvided": c.CredentialsFile != "",
		"discordTokenSet":     c.DiscordBotToken != "",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		iv, err := strconv.Atoi(v)
		if err == nil {
			return iv
		}
		fmt.Printf("invalid int for %s: %s\n", key, v)
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func projectIDFromCredentials(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	var x struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &x); err != nil {
		log.Warn().Err(err).Str("credsFile", path).Msg("credentials file is not valid JSON")
	}
	return x.ProjectID, nil
}

func getGoogleProjectID(credsFile string, explicit string) string {
	// 1) Prefer GOOGLE_APPLICATION_CREDENTIALS if set
	if p := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); p != "" {
		log.Info().Str("credsFile", p).Msg("GOOGLE_APPLICATION_CREDENTIALS is set; extracting project_id from credentials file")
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			return strings.TrimSpace(pid)
		}
		log.Warn().Str("credsFile", p).Msg("project_id not found in credentials file or unreadable")
	}

	// 2) Explicit override
	if explicit := strings.TrimSpace(explicit); explicit != "" {
		log.Info().Str("projectID", explicit).Msg("using PROVISIONER_PUBSUB_PROJECT_ID for Google project")
		return explicit
	}

	// 3) Deployment override
	if v := strings.TrimSpace(os.Getenv("GOOGLE_PROJECT_ID")); v != "" {
		log.Info().Str("projectID", v).Msg("using GOOGLE_PROJECT_ID from environment")
		return v
	}

	// 4) Common Google envs
	if v := firstNonEmpty(os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCLOUD_PROJECT"), os.Getenv("GCP_PROJECT")); strings.TrimSpace(v) != "" {
		v = strings.TrimSpace(v)
		log.Info().Str("projectID", v).Msg("using Google project from common environment variables")
		return v
	}

	// 5) Fallback to provided credentials file path (PROVISIONER_GSA_CREDENTIALS)
	if p := strings.TrimSpace(credsFile); p != "" {
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			log.Info().Str("credsFile", p).Msg("using project_id from provided credentials file")
			return strings.TrimSpace(pid)
		}
	}
	return ""
}
