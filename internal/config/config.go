package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all runtime settings for the card voice service.
type Config struct {
	BindAddr         string        `env:"APP_BIND_ADDR" envDefault:":8080"`
	ShutdownTimeout  time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MetricsNamespace string        `env:"APP_METRICS_NAMESPACE" envDefault:"voicecard"`
	LogLevel         string        `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"APP_LOG_FORMAT" envDefault:"text"`

	// Session service. No defaults: a deployment without these cannot provision.
	LiveKitURL       string `env:"LIVEKIT_URL"`
	LiveKitAPIKey    string `env:"LIVEKIT_API_KEY"`
	LiveKitAPISecret string `env:"LIVEKIT_API_SECRET"`

	AgentName              string        `env:"AGENT_NAME" envDefault:"inbound-agent"`
	RoomPrefix             string        `env:"ROOM_PREFIX" envDefault:"voice_assistant_room_"`
	ParticipantPrefix      string        `env:"PARTICIPANT_PREFIX" envDefault:"voice_assistant_user_"`
	ParticipantDisplayName string        `env:"PARTICIPANT_DISPLAY_NAME" envDefault:"Card Recipient"`
	IdentityMode           string        `env:"IDENTITY_MODE" envDefault:"random"`
	DispatchTimeout        time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"10s"`
	CompensateDispatch     bool          `env:"PROVISION_COMPENSATE_DISPATCH" envDefault:"false"`
	// DispatchMode "mock" records dispatches in memory instead of calling
	// the orchestration service. Tokens are still signed.
	DispatchMode string `env:"DISPATCH_MODE" envDefault:"livekit"`

	DatabaseURL   string `env:"DATABASE_URL"`
	CardsSeedFile string `env:"CARDS_SEED_FILE"`

	DocStore DocStoreConfig
}

// DocStoreConfig is the public document-store project configuration handed
// to browser clients so they can read card documents directly.
type DocStoreConfig struct {
	APIKey        string `env:"DOCSTORE_API_KEY" json:"apiKey"`
	AuthDomain    string `env:"DOCSTORE_AUTH_DOMAIN" json:"authDomain"`
	ProjectID     string `env:"DOCSTORE_PROJECT_ID" json:"projectId"`
	StorageBucket string `env:"DOCSTORE_STORAGE_BUCKET" json:"storageBucket"`
	AppID         string `env:"DOCSTORE_APP_ID" json:"appId"`
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()

	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.DispatchTimeout <= 0 {
		return Config{}, fmt.Errorf("DISPATCH_TIMEOUT must be positive")
	}
	if cfg.AgentName == "" {
		return Config{}, fmt.Errorf("AGENT_NAME must not be empty")
	}
	if cfg.RoomPrefix == "" || cfg.ParticipantPrefix == "" {
		return Config{}, fmt.Errorf("ROOM_PREFIX and PARTICIPANT_PREFIX must not be empty")
	}
	switch cfg.IdentityMode {
	case "random", "uuid":
	default:
		return Config{}, fmt.Errorf("invalid IDENTITY_MODE: %q (expected random|uuid)", cfg.IdentityMode)
	}
	switch cfg.DispatchMode {
	case "livekit", "mock":
	default:
		return Config{}, fmt.Errorf("invalid DISPATCH_MODE: %q (expected livekit|mock)", cfg.DispatchMode)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("invalid APP_LOG_FORMAT: %q (expected text|json)", cfg.LogFormat)
	}
	return cfg, nil
}

// MissingProvisioningKeys lists the session-service settings that are absent.
// Provisioning refuses to run while this is non-empty.
func (c Config) MissingProvisioningKeys() []string {
	var missing []string
	if c.LiveKitURL == "" {
		missing = append(missing, "LIVEKIT_URL")
	}
	if c.LiveKitAPIKey == "" {
		missing = append(missing, "LIVEKIT_API_KEY")
	}
	if c.LiveKitAPISecret == "" {
		missing = append(missing, "LIVEKIT_API_SECRET")
	}
	return missing
}

// MissingDocStoreKeys lists absent client-facing document-store settings.
func (c Config) MissingDocStoreKeys() []string {
	var missing []string
	for _, kv := range []struct{ key, val string }{
		{"DOCSTORE_API_KEY", c.DocStore.APIKey},
		{"DOCSTORE_AUTH_DOMAIN", c.DocStore.AuthDomain},
		{"DOCSTORE_PROJECT_ID", c.DocStore.ProjectID},
		{"DOCSTORE_STORAGE_BUCKET", c.DocStore.StorageBucket},
		{"DOCSTORE_APP_ID", c.DocStore.AppID},
	} {
		if kv.val == "" {
			missing = append(missing, kv.key)
		}
	}
	return missing
}

func (c *Config) normalize() {
	for _, p := range []*string{
		&c.BindAddr, &c.MetricsNamespace, &c.LiveKitURL, &c.LiveKitAPIKey,
		&c.LiveKitAPISecret, &c.AgentName, &c.RoomPrefix, &c.ParticipantPrefix,
		&c.ParticipantDisplayName, &c.DatabaseURL, &c.CardsSeedFile,
		&c.DocStore.APIKey, &c.DocStore.AuthDomain, &c.DocStore.ProjectID,
		&c.DocStore.StorageBucket, &c.DocStore.AppID,
	} {
		*p = strings.TrimSpace(*p)
	}
	c.IdentityMode = strings.ToLower(strings.TrimSpace(c.IdentityMode))
	c.DispatchMode = strings.ToLower(strings.TrimSpace(c.DispatchMode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}
