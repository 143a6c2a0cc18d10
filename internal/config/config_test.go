package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ailearninghub/hub/internal/voice"
)

func newViper(t *testing.T, yml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if yml != "" {
		if err := v.ReadConfig(strings.NewReader(yml)); err != nil {
			t.Fatalf("read config: %v", err)
		}
	}
	return v
}

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "HUB_USER_ID", "CARTESIA_API_KEY", "HUB_DATABASE_URL")

	dir := t.TempDir()
	cfg, err := Load(newViper(t, ""), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Backend != "disk" || cfg.Storage.Dir != filepath.Clean(dir) {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Storage.Quota() != 50<<20 {
		t.Errorf("Quota() = %d", cfg.Storage.Quota())
	}
	if cfg.Services.Timeout != 2*time.Minute || cfg.Services.RequestsPerMinute != 30 {
		t.Errorf("unexpected services: %+v", cfg.Services)
	}
	if cfg.Speech.Engine != EngineGTTS || cfg.Speech.Rate != 1.05 {
		t.Errorf("unexpected speech: %+v", cfg.Speech)
	}
	if len(cfg.Voice.Triggers) != len(voice.DefaultTriggers) || cfg.Voice.RestartDelay != 300*time.Millisecond {
		t.Errorf("unexpected voice: %+v", cfg.Voice)
	}
	if cfg.Env.UserID != "local" {
		t.Errorf("UserID = %q, want local", cfg.Env.UserID)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	t.Setenv("CARTESIA_API_KEY", "sk-test")
	t.Setenv("HUB_DATABASE_URL", "postgres://localhost/hub")
	t.Setenv("HUB_USER_ID", "ada")

	yml := `
storage:
  backend: SQLite
  dir: /tmp/hub-data/
  quota_mb: 5
speech:
  engine: none
voice:
  enabled: true
  triggers: ["ok tutor"]
  restart_delay: 1s
progress:
  enabled: true
`
	cfg, err := Load(newViper(t, yml), "/unused")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Dir != "/tmp/hub-data" || cfg.Storage.QuotaMB != 5 {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Speech.Engine != EngineNone {
		t.Errorf("engine = %q", cfg.Speech.Engine)
	}
	if !cfg.Voice.Enabled || len(cfg.Voice.Triggers) != 1 || cfg.Voice.Triggers[0] != "ok tutor" || cfg.Voice.RestartDelay != time.Second {
		t.Errorf("unexpected voice: %+v", cfg.Voice)
	}
	if cfg.Env.CartesiaAPIKey != "sk-test" || cfg.Env.UserID != "ada" || !cfg.Progress.Enabled {
		t.Errorf("unexpected env: %+v", cfg.Env)
	}
}

func TestValidate(t *testing.T) {
	unsetEnv(t, "CARTESIA_API_KEY", "HUB_DATABASE_URL")

	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"backend", "storage: {backend: redis}", "storage backend"},
		{"quota", "storage: {quota_mb: 0}", "quota_mb"},
		{"url", "services: {doubt_url: localhost:8000}", "doubt_url"},
		{"timeout", "services: {timeout: 0s}", "timeout"},
		{"engine", "speech: {engine: espeak}", "speech engine"},
		{"piper model", "speech: {engine: piper}", "piper.model"},
		{"rate", "speech: {rate: 9}", "speech rate"},
		{"language", "speech: {language: e}", "language"},
		{"voice key", "voice: {enabled: true}", "CARTESIA_API_KEY"},
		{"database", "progress: {enabled: true}", "HUB_DATABASE_URL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(newViper(t, tc.yml), t.TempDir())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestMemoryBackendNeedsNoDir(t *testing.T) {
	_, err := Load(newViper(t, "storage: {backend: memory}"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
}
