package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.AgentName != "inbound-agent" {
		t.Fatalf("AgentName = %q, want %q", cfg.AgentName, "inbound-agent")
	}
	if cfg.RoomPrefix != "voice_assistant_room_" {
		t.Fatalf("RoomPrefix = %q, want default", cfg.RoomPrefix)
	}
	if cfg.DispatchTimeout != 10*time.Second {
		t.Fatalf("DispatchTimeout = %v, want 10s", cfg.DispatchTimeout)
	}
	if cfg.LiveKitURL != "" {
		t.Fatalf("LiveKitURL = %q, want empty default", cfg.LiveKitURL)
	}
	if cfg.DispatchMode != "livekit" {
		t.Fatalf("DispatchMode = %q, want %q", cfg.DispatchMode, "livekit")
	}
}

func TestLoadTrimsProvisioningSecrets(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LIVEKIT_URL", "  wss://rtc.example.test ")
	t.Setenv("LIVEKIT_API_KEY", "key\n")
	t.Setenv("LIVEKIT_API_SECRET", "\tsecret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LiveKitURL != "wss://rtc.example.test" || cfg.LiveKitAPIKey != "key" || cfg.LiveKitAPISecret != "secret" {
		t.Fatalf("unexpected trimmed values: %+v", cfg)
	}
	if missing := cfg.MissingProvisioningKeys(); len(missing) != 0 {
		t.Fatalf("MissingProvisioningKeys() = %v, want none", missing)
	}
}

func TestMissingProvisioningKeys(t *testing.T) {
	cfg := Config{LiveKitAPIKey: "key"}
	want := []string{"LIVEKIT_URL", "LIVEKIT_API_SECRET"}
	if got := cfg.MissingProvisioningKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("MissingProvisioningKeys() = %v, want %v", got, want)
	}
}

func TestMissingDocStoreKeys(t *testing.T) {
	cfg := Config{DocStore: DocStoreConfig{APIKey: "k", ProjectID: "p"}}
	want := []string{"DOCSTORE_AUTH_DOMAIN", "DOCSTORE_STORAGE_BUCKET", "DOCSTORE_APP_ID"}
	if got := cfg.MissingDocStoreKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("MissingDocStoreKeys() = %v, want %v", got, want)
	}
}

func TestLoadRejectsInvalidIdentityMode(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("IDENTITY_MODE", "sequential")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for invalid IDENTITY_MODE")
	}
}

func TestLoadDispatchMode(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("DISPATCH_MODE", " Mock ")
	t.Setenv("CARDS_SEED_FILE", " /etc/voicecard/cards.json ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DispatchMode != "mock" {
		t.Fatalf("DispatchMode = %q, want %q", cfg.DispatchMode, "mock")
	}
	if cfg.CardsSeedFile != "/etc/voicecard/cards.json" {
		t.Fatalf("CardsSeedFile = %q, want trimmed path", cfg.CardsSeedFile)
	}

	t.Setenv("DISPATCH_MODE", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for invalid DISPATCH_MODE")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("DISPATCH_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected parse error for DISPATCH_TIMEOUT")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_LOG_LEVEL",
		"APP_LOG_FORMAT",
		"LIVEKIT_URL",
		"LIVEKIT_API_KEY",
		"LIVEKIT_API_SECRET",
		"AGENT_NAME",
		"ROOM_PREFIX",
		"PARTICIPANT_PREFIX",
		"PARTICIPANT_DISPLAY_NAME",
		"IDENTITY_MODE",
		"DISPATCH_TIMEOUT",
		"PROVISION_COMPENSATE_DISPATCH",
		"DISPATCH_MODE",
		"DATABASE_URL",
		"CARDS_SEED_FILE",
		"DOCSTORE_API_KEY",
		"DOCSTORE_AUTH_DOMAIN",
		"DOCSTORE_PROJECT_ID",
		"DOCSTORE_STORAGE_BUCKET",
		"DOCSTORE_APP_ID",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
