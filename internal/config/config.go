package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Authority    AuthorityConfig    `yaml:"authority"`
	Notification NotificationConfig `yaml:"notification"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Projection   ProjectionConfig   `yaml:"projection"`
	Journal      JournalConfig      `yaml:"journal"`
	Enrich       EnrichConfig       `yaml:"enrich"`
	Log          LogConfig          `yaml:"log"`
}

// AuthorityConfig contains remote authority client settings.
type AuthorityConfig struct {
	URL     string   `yaml:"url"`
	APIKey  string   `yaml:"-"` // env-only, never in YAML
	Timeout Duration `yaml:"timeout"`
}

// NotificationConfig contains notification channel settings.
type NotificationConfig struct {
	URL     string   `yaml:"url"`
	APIKey  string   `yaml:"-"` // env-only, never in YAML
	Timeout Duration `yaml:"timeout"`
}

// PipelineConfig contains mutation coordinator settings.
type PipelineConfig struct {
	// MilestoneStages lists stage names whose entry triggers a
	// notification side effect.
	MilestoneStages []string `yaml:"milestone_stages"`
	// ResetStageEntryOnReopen controls whether moving a deal out of a
	// closed-type stage stamps a fresh stage_entered_at. The source
	// system always restamps; keep true unless funnel-timing history
	// must survive a reopen.
	ResetStageEntryOnReopen bool `yaml:"reset_stage_entry_on_reopen"`
}

// ProjectionConfig contains read-side query settings.
type ProjectionConfig struct {
	// FlagChunkSize caps the id count per batched existence lookup.
	// The authority rejects IN-queries above 100 ids.
	FlagChunkSize int `yaml:"flag_chunk_size"`
	// StalenessWindow bounds reconciliation refetches: a collection
	// reconciled within the window is not refetched again.
	StalenessWindow Duration `yaml:"staleness_window"`
}

// JournalConfig contains local mutation journal settings.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// EnrichConfig contains decision-maker enrichment settings.
type EnrichConfig struct {
	SerperAPIKey     string `yaml:"-"` // env-only, never in YAML
	OpenRouterAPIKey string `yaml:"-"` // env-only, never in YAML
	Model            string `yaml:"model"`
	BatchSize        int    `yaml:"batch_size"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("DEALSYNC_CONFIG_PATH", "config/dealsync.yaml")

	// Missing file is not an error; defaults plus env cover it
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Authority: AuthorityConfig{
			Timeout: Duration(30 * time.Second),
		},
		Notification: NotificationConfig{
			Timeout: Duration(10 * time.Second),
		},
		Pipeline: PipelineConfig{
			MilestoneStages:         []string{"Owner intro requested"},
			ResetStageEntryOnReopen: true,
		},
		Projection: ProjectionConfig{
			FlagChunkSize:   100,
			StalenessWindow: Duration(5 * time.Second),
		},
		Journal: JournalConfig{
			Path: "data/dealsync.db",
		},
		Enrich: EnrichConfig{
			Model:     "openai/gpt-4o-mini",
			BatchSize: 14,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Authority
	if v := os.Getenv("DEALSYNC_AUTHORITY_URL"); v != "" {
		cfg.Authority.URL = v
	}
	if v := os.Getenv("DEALSYNC_AUTHORITY_API_KEY"); v != "" {
		cfg.Authority.APIKey = v
	}
	if v := os.Getenv("DEALSYNC_AUTHORITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Authority.Timeout = Duration(d)
		}
	}

	// Notification
	if v := os.Getenv("DEALSYNC_NOTIFICATION_URL"); v != "" {
		cfg.Notification.URL = v
	}
	if v := os.Getenv("DEALSYNC_NOTIFICATION_API_KEY"); v != "" {
		cfg.Notification.APIKey = v
	}

	// Projection
	if v := os.Getenv("DEALSYNC_FLAG_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Projection.FlagChunkSize = n
		}
	}
	if v := os.Getenv("DEALSYNC_STALENESS_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Projection.StalenessWindow = Duration(d)
		}
	}

	// Journal
	if v := os.Getenv("DEALSYNC_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// Enrichment (key names follow the upstream services)
	if v := os.Getenv("SERPER_API_KEY"); v != "" {
		cfg.Enrich.SerperAPIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Enrich.OpenRouterAPIKey = v
	}
	if v := os.Getenv("DEALSYNC_ENRICH_MODEL"); v != "" {
		cfg.Enrich.Model = v
	}
	if v := os.Getenv("DEALSYNC_ENRICH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Enrich.BatchSize = n
		}
	}

	// Log
	if v := os.Getenv("DEALSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DEALSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (DEALSYNC_DEV_MODE=true), endpoint validation is skipped.
func (c *Config) validate() error {
	if os.Getenv("DEALSYNC_DEV_MODE") == "true" {
		return nil
	}

	if c.Projection.FlagChunkSize < 1 || c.Projection.FlagChunkSize > 100 {
		return fmt.Errorf("projection.flag_chunk_size must be in [1,100], got %d", c.Projection.FlagChunkSize)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
