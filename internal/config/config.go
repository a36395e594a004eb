package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wallyrebel/sportshorts/internal/domain"
)

const (
	configPathEnv = "SPORTSHORTS_CONFIG"

	openAIAPIKeyEnv        = "OPENAI_API_KEY"
	openAIPrimaryModelEnv  = "OPENAI_PRIMARY_MODEL"
	openAIFallbackModelEnv = "OPENAI_FALLBACK_MODEL"
	elevenLabsAPIKeyEnv    = "ELEVENLABS_API_KEY"
	elevenLabsVoiceIDEnv   = "ELEVENLABS_VOICE_ID"
	storageAccessKeyEnv    = "R2_ACCESS_KEY_ID"
	storageSecretKeyEnv    = "R2_SECRET_ACCESS_KEY"
	storageAccountIDEnv    = "R2_ACCOUNT_ID"
	storageBucketEnv       = "R2_BUCKET"
	smtpUserEnv            = "SMTP_USER"
	smtpPassEnv            = "SMTP_PASS"
	emailToEnv             = "EMAIL_TO"
	maxRecentPerFeedEnv    = "MAX_RECENT_PER_FEED"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig     `yaml:"logging"`
	Feeds    []domain.FeedSpec `yaml:"feeds"`
	Style    domain.Style      `yaml:"style"`
	Ingest   IngestConfig      `yaml:"ingest"`
	OpenAI   OpenAIConfig      `yaml:"openai"`
	TTS      TTSConfig         `yaml:"tts"`
	Storage  StorageConfig     `yaml:"storage"`
	Email    EmailConfig       `yaml:"email"`
	Renderer RendererConfig    `yaml:"renderer"`

	// RunSummaryPath is where the machine-readable run summary lands.
	RunSummaryPath string `yaml:"runSummaryPath"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IngestConfig bounds feed polling.
type IngestConfig struct {
	MaxRecentPerFeed int    `yaml:"maxRecentPerFeed"`
	TimeoutSec       int    `yaml:"timeoutSec"`
	UserAgent        string `yaml:"userAgent"`
}

// OpenAIConfig defines the narration providers, primary and fallback.
type OpenAIConfig struct {
	APIKey             string `yaml:"apiKey"`
	PrimaryModel       string `yaml:"primaryModel"`
	FallbackModel      string `yaml:"fallbackModel"`
	PrimaryTimeoutSec  int    `yaml:"primaryTimeoutSec"`
	FallbackTimeoutSec int    `yaml:"fallbackTimeoutSec"`
	MaxRetries         int    `yaml:"maxRetries"`
}

// TTSConfig wires the speech synthesizer.
type TTSConfig struct {
	APIKey     string  `yaml:"apiKey"`
	VoiceID    string  `yaml:"voiceId"`
	Model      string  `yaml:"model"`
	Stability  float64 `yaml:"stability"`
	Similarity float64 `yaml:"similarity"`
	MaxRetries int     `yaml:"maxRetries"`
	TimeoutSec int     `yaml:"timeoutSec"`
}

// StorageConfig describes the R2 bucket holding artifacts and the ledger.
type StorageConfig struct {
	AccessKeyID       string `yaml:"accessKeyId"`
	SecretAccessKey   string `yaml:"secretAccessKey"`
	AccountID         string `yaml:"accountId"`
	Bucket            string `yaml:"bucket"`
	Endpoint          string `yaml:"endpoint"`
	PresignExpiresSec int    `yaml:"presignExpiresSec"`
	RetentionDays     int    `yaml:"retentionDays"`
}

// EndpointURL resolves the explicit endpoint, else derives it from the
// account ID.
func (s StorageConfig) EndpointURL() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)
}

// EmailConfig wires the SMTP notifier.
type EmailConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	To          string `yaml:"to"`
	Mode        string `yaml:"mode"` // "digest" or "per_clip"
	AlwaysEmail bool   `yaml:"alwaysEmail"`
}

// RendererConfig locates the external media binaries.
type RendererConfig struct {
	FFmpegBin  string `yaml:"ffmpegBin"`
	FFprobeBin string `yaml:"ffprobeBin"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// LoadFile behaves like Load but reads the given path instead of the
// environment-selected one.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg = mergeConfig(cfg, fileCfg)
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Validate reports every missing setting a real (non-dry) run requires.
// Dry runs construct no external adapters and only need feeds.
func (c Config) Validate(dryRun bool) error {
	var missing []string
	if len(c.Feeds) == 0 {
		missing = append(missing, "feeds")
	}
	if !dryRun {
		if c.OpenAI.APIKey == "" {
			missing = append(missing, openAIAPIKeyEnv)
		}
		if c.TTS.APIKey == "" {
			missing = append(missing, elevenLabsAPIKeyEnv)
		}
		if c.TTS.VoiceID == "" {
			missing = append(missing, elevenLabsVoiceIDEnv)
		}
		if c.Storage.AccessKeyID == "" {
			missing = append(missing, storageAccessKeyEnv)
		}
		if c.Storage.SecretAccessKey == "" {
			missing = append(missing, storageSecretKeyEnv)
		}
		if c.Email.User == "" {
			missing = append(missing, smtpUserEnv)
		}
		if c.Email.Password == "" {
			missing = append(missing, smtpPassEnv)
		}
		if c.Email.To == "" {
			missing = append(missing, emailToEnv)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIPrimaryModelEnv); v != "" {
		c.OpenAI.PrimaryModel = v
	}
	if v := os.Getenv(openAIFallbackModelEnv); v != "" {
		c.OpenAI.FallbackModel = v
	}
	if v := os.Getenv(elevenLabsAPIKeyEnv); v != "" {
		c.TTS.APIKey = v
	}
	if v := os.Getenv(elevenLabsVoiceIDEnv); v != "" {
		c.TTS.VoiceID = v
	}
	if v := os.Getenv(storageAccessKeyEnv); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv(storageSecretKeyEnv); v != "" {
		c.Storage.SecretAccessKey = v
	}
	if v := os.Getenv(storageAccountIDEnv); v != "" {
		c.Storage.AccountID = v
	}
	if v := os.Getenv(storageBucketEnv); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv(smtpUserEnv); v != "" {
		c.Email.User = v
	}
	if v := os.Getenv(smtpPassEnv); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv(emailToEnv); v != "" {
		c.Email.To = v
	}
	if v := os.Getenv(maxRecentPerFeedEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			c.Ingest.MaxRecentPerFeed = parsed
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}
	if override.Style != (domain.Style{}) {
		base.Style = override.Style
	}
	if override.Ingest.MaxRecentPerFeed != 0 {
		base.Ingest.MaxRecentPerFeed = override.Ingest.MaxRecentPerFeed
	}
	if override.Ingest.TimeoutSec != 0 {
		base.Ingest.TimeoutSec = override.Ingest.TimeoutSec
	}
	if override.Ingest.UserAgent != "" {
		base.Ingest.UserAgent = override.Ingest.UserAgent
	}

	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.PrimaryModel != "" {
		base.OpenAI.PrimaryModel = override.OpenAI.PrimaryModel
	}
	if override.OpenAI.FallbackModel != "" {
		base.OpenAI.FallbackModel = override.OpenAI.FallbackModel
	}
	if override.OpenAI.PrimaryTimeoutSec != 0 {
		base.OpenAI.PrimaryTimeoutSec = override.OpenAI.PrimaryTimeoutSec
	}
	if override.OpenAI.FallbackTimeoutSec != 0 {
		base.OpenAI.FallbackTimeoutSec = override.OpenAI.FallbackTimeoutSec
	}
	if override.OpenAI.MaxRetries != 0 {
		base.OpenAI.MaxRetries = override.OpenAI.MaxRetries
	}

	if override.TTS.APIKey != "" {
		base.TTS.APIKey = override.TTS.APIKey
	}
	if override.TTS.VoiceID != "" {
		base.TTS.VoiceID = override.TTS.VoiceID
	}
	if override.TTS.Model != "" {
		base.TTS.Model = override.TTS.Model
	}
	if override.TTS.Stability != 0 {
		base.TTS.Stability = override.TTS.Stability
	}
	if override.TTS.Similarity != 0 {
		base.TTS.Similarity = override.TTS.Similarity
	}
	if override.TTS.MaxRetries != 0 {
		base.TTS.MaxRetries = override.TTS.MaxRetries
	}
	if override.TTS.TimeoutSec != 0 {
		base.TTS.TimeoutSec = override.TTS.TimeoutSec
	}

	if override.Storage.AccessKeyID != "" {
		base.Storage.AccessKeyID = override.Storage.AccessKeyID
	}
	if override.Storage.SecretAccessKey != "" {
		base.Storage.SecretAccessKey = override.Storage.SecretAccessKey
	}
	if override.Storage.AccountID != "" {
		base.Storage.AccountID = override.Storage.AccountID
	}
	if override.Storage.Bucket != "" {
		base.Storage.Bucket = override.Storage.Bucket
	}
	if override.Storage.Endpoint != "" {
		base.Storage.Endpoint = override.Storage.Endpoint
	}
	if override.Storage.PresignExpiresSec != 0 {
		base.Storage.PresignExpiresSec = override.Storage.PresignExpiresSec
	}
	if override.Storage.RetentionDays != 0 {
		base.Storage.RetentionDays = override.Storage.RetentionDays
	}

	if override.Email.Host != "" {
		base.Email.Host = override.Email.Host
	}
	if override.Email.Port != 0 {
		base.Email.Port = override.Email.Port
	}
	if override.Email.User != "" {
		base.Email.User = override.Email.User
	}
	if override.Email.Password != "" {
		base.Email.Password = override.Email.Password
	}
	if override.Email.To != "" {
		base.Email.To = override.Email.To
	}
	if override.Email.Mode != "" {
		base.Email.Mode = strings.ToLower(strings.TrimSpace(override.Email.Mode))
	}
	if override.Email.AlwaysEmail {
		base.Email.AlwaysEmail = true
	}

	if override.Renderer.FFmpegBin != "" {
		base.Renderer.FFmpegBin = override.Renderer.FFmpegBin
	}
	if override.Renderer.FFprobeBin != "" {
		base.Renderer.FFprobeBin = override.Renderer.FFprobeBin
	}
	if override.RunSummaryPath != "" {
		base.RunSummaryPath = override.RunSummaryPath
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Style:   domain.DefaultStyle(),
		Ingest: IngestConfig{
			MaxRecentPerFeed: 5,
			TimeoutSec:       20,
			UserAgent:        "sportshorts/1.0",
		},
		OpenAI: OpenAIConfig{
			PrimaryModel:       "gpt-5-mini",
			FallbackModel:      "gpt-4.1-nano",
			PrimaryTimeoutSec:  20,
			FallbackTimeoutSec: 15,
			MaxRetries:         3,
		},
		TTS: TTSConfig{
			Model:      "eleven_multilingual_v2",
			Stability:  0.5,
			Similarity: 0.8,
			MaxRetries: 3,
			TimeoutSec: 45,
		},
		Storage: StorageConfig{
			Bucket:            "videoshorts",
			PresignExpiresSec: 604800,
			RetentionDays:     30,
		},
		Email: EmailConfig{
			Host: "smtp.gmail.com",
			Port: 587,
			Mode: "digest",
		},
		Renderer: RendererConfig{
			FFmpegBin:  "ffmpeg",
			FFprobeBin: "ffprobe",
		},
		RunSummaryPath: "run_summary.json",
	}
}
