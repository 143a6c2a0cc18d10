// Package config turns viper settings and environment variables into the
// typed configuration the hub components are built from.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/ailearninghub/hub/internal/kv"
	"github.com/ailearninghub/hub/internal/remote"
	"github.com/ailearninghub/hub/internal/voice"
)

// Speech engines.
const (
	EngineGTTS  = "gtts"
	EnginePiper = "piper"
	EngineNone  = "none"
)

// Config is the full hub configuration.
type Config struct {
	Debug bool
	Style string
	Width uint

	Storage  Storage
	Services remote.Config
	Speech   Speech
	Voice    Voice
	Progress Progress

	Env Env
}

// Storage selects the key-value backend.
type Storage struct {
	Backend string
	Dir     string
	QuotaMB int64
}

// Quota returns the storage quota in bytes.
func (s Storage) Quota() int64 {
	return s.QuotaMB << 20
}

// Speech configures spoken output.
type Speech struct {
	Engine     string
	Language   string
	Rate       float64
	PiperBin   string
	PiperModel string
}

// Voice configures the wake-word commander.
type Voice struct {
	Enabled      bool
	Triggers     []string
	Language     string
	RestartDelay time.Duration
	MicCommand   string
}

// Progress configures reading-progress tracking.
type Progress struct {
	Enabled bool
}

// Env holds secrets and machine-specific settings.
type Env struct {
	CartesiaAPIKey string `env:"CARTESIA_API_KEY"`
	DatabaseURL    string `env:"HUB_DATABASE_URL"`
	UserID         string `env:"HUB_USER_ID" envDefault:"local"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("style", "auto")
	v.SetDefault("width", 0)

	v.SetDefault("storage.backend", kv.BackendDisk)
	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.quota_mb", 50)

	v.SetDefault("services.summarize_url", remote.DefaultSummarizeURL)
	v.SetDefault("services.doubt_url", remote.DefaultDoubtURL)
	v.SetDefault("services.videos_url", remote.DefaultVideosURL)
	v.SetDefault("services.timeout", 2*time.Minute)
	v.SetDefault("services.requests_per_minute", 30)

	v.SetDefault("speech.engine", EngineGTTS)
	v.SetDefault("speech.language", "en")
	v.SetDefault("speech.rate", 1.05)
	v.SetDefault("speech.piper.binary", "piper")
	v.SetDefault("speech.piper.model", "")

	v.SetDefault("voice.enabled", false)
	v.SetDefault("voice.triggers", voice.DefaultTriggers)
	v.SetDefault("voice.language", "en")
	v.SetDefault("voice.restart_delay", 300*time.Millisecond)
	v.SetDefault("voice.mic_command", "")

	v.SetDefault("progress.enabled", false)
}

// Load builds and validates a Config from v and the environment. dataDir
// is used when storage.dir is unset.
func Load(v *viper.Viper, dataDir string) (Config, error) {
	cfg := Config{
		Debug: v.GetBool("debug"),
		Style: v.GetString("style"),
		Width: v.GetUint("width"),
		Storage: Storage{
			Backend: strings.ToLower(v.GetString("storage.backend")),
			Dir:     v.GetString("storage.dir"),
			QuotaMB: v.GetInt64("storage.quota_mb"),
		},
		Services: remote.Config{
			SummarizeURL:      v.GetString("services.summarize_url"),
			DoubtURL:          v.GetString("services.doubt_url"),
			VideosURL:         v.GetString("services.videos_url"),
			Timeout:           v.GetDuration("services.timeout"),
			RequestsPerMinute: v.GetInt("services.requests_per_minute"),
		},
		Speech: Speech{
			Engine:     strings.ToLower(v.GetString("speech.engine")),
			Language:   v.GetString("speech.language"),
			Rate:       v.GetFloat64("speech.rate"),
			PiperBin:   v.GetString("speech.piper.binary"),
			PiperModel: v.GetString("speech.piper.model"),
		},
		Voice: Voice{
			Enabled:      v.GetBool("voice.enabled"),
			Triggers:     v.GetStringSlice("voice.triggers"),
			Language:     v.GetString("voice.language"),
			RestartDelay: v.GetDuration("voice.restart_delay"),
			MicCommand:   v.GetString("voice.mic_command"),
		},
		Progress: Progress{
			Enabled: v.GetBool("progress.enabled"),
		},
	}

	e, err := env.ParseAs[Env]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Env = e

	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = dataDir
	}
	if cfg.Storage.Dir, err = expand(cfg.Storage.Dir); err != nil {
		return Config{}, err
	}
	if cfg.Speech.PiperModel, err = expand(cfg.Speech.PiperModel); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case kv.BackendMemory, kv.BackendDisk, kv.BackendSQLite:
	default:
		return fmt.Errorf("storage backend must be memory, disk or sqlite, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend != kv.BackendMemory && c.Storage.Dir == "" {
		return errors.New("storage dir is required for persistent backends")
	}
	if c.Storage.QuotaMB < 1 || c.Storage.QuotaMB > 10000 {
		return fmt.Errorf("storage quota_mb must be between 1 and 10000, got %d", c.Storage.QuotaMB)
	}

	for name, u := range map[string]string{
		"summarize_url": c.Services.SummarizeURL,
		"doubt_url":     c.Services.DoubtURL,
		"videos_url":    c.Services.VideosURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("services %s must be an http(s) URL, got %q", name, u)
		}
	}
	if c.Services.Timeout <= 0 {
		return fmt.Errorf("services timeout must be positive, got %s", c.Services.Timeout)
	}
	if c.Services.RequestsPerMinute < 0 {
		return fmt.Errorf("services requests_per_minute must not be negative, got %d", c.Services.RequestsPerMinute)
	}

	switch c.Speech.Engine {
	case EngineGTTS, EngineNone:
	case EnginePiper:
		if c.Speech.PiperModel == "" {
			return errors.New("speech piper.model is required for the piper engine")
		}
	default:
		return fmt.Errorf("speech engine must be gtts, piper or none, got %q", c.Speech.Engine)
	}
	if c.Speech.Rate < 0.1 || c.Speech.Rate > 3.0 {
		return fmt.Errorf("speech rate must be between 0.1 and 3.0, got %.2f", c.Speech.Rate)
	}
	if l := len(c.Speech.Language); l < 2 || l > 5 {
		return fmt.Errorf("speech language code must be 2-5 characters, got %q", c.Speech.Language)
	}

	if c.Voice.Enabled {
		if len(c.Voice.Triggers) == 0 {
			return errors.New("voice triggers must not be empty")
		}
		if c.Env.CartesiaAPIKey == "" {
			return errors.New("voice commands need CARTESIA_API_KEY")
		}
	}
	if c.Voice.RestartDelay < 0 {
		return fmt.Errorf("voice restart_delay must not be negative, got %s", c.Voice.RestartDelay)
	}

	if c.Progress.Enabled && c.Env.DatabaseURL == "" {
		return errors.New("progress tracking needs HUB_DATABASE_URL")
	}
	return nil
}

func expand(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	p, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand path %q: %w", p, err)
	}
	return filepath.Clean(p), nil
}
