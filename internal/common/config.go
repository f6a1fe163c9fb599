package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
// Priority: defaults -> config file(s) -> environment -> CLI flags.
type Config struct {
	Environment string                       `toml:"environment"` // "development" or "production"
	Server      ServerConfig                 `toml:"server"`
	Logging     LoggingConfig                `toml:"logging"`
	Storage     StorageConfig                `toml:"storage"`
	Queue       QueueConfig                  `toml:"queue"`
	Signing     SigningConfig                `toml:"signing"`
	Janitor     JanitorConfig                `toml:"janitor"`
	Apify       ApifyConfig                  `toml:"apify"`
	Providers   map[string]ProviderSettings  `toml:"providers" validate:"omitempty,dive"` // keyed by platform name
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s" - how often workers poll
	Concurrency       int    `toml:"concurrency" validate:"min=1"`
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - redelivery window
	MaxReceive        int    `toml:"max_receive" validate:"min=1"`
	QueueName         string `toml:"queue_name"`
}

// SigningConfig holds the shared secret for the continuation callback.
type SigningConfig struct {
	Secret string `toml:"secret"`
}

// JanitorConfig controls the periodic sweep for timed-out and stalled jobs.
type JanitorConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron expression
}

// ApifyConfig configures the Apify actor API used by the provider adapters.
type ApifyConfig struct {
	Token   string `toml:"token"`
	BaseURL string `toml:"base_url"`

	// Actor IDs per platform and mode. Internal Apify actor IDs, not names.
	InstagramSearchActor  string `toml:"instagram_search_actor"`
	InstagramSimilarActor string `toml:"instagram_similar_actor"`
	InstagramProfileActor string `toml:"instagram_profile_actor"` // enrichment lookups
	TikTokSearchActor     string `toml:"tiktok_search_actor"`

	RunTimeout string `toml:"run_timeout"` // per-call hard timeout, e.g. "60s"
}

// ProviderSettings is the per-platform tuning block. The minimum floors here
// are load-time guarantees: a config that trims attempts or delays below them
// fails validation instead of silently producing jobs that "complete" after
// trivial partial progress.
type ProviderSettings struct {
	MaxAttempts       int     `toml:"max_attempts" validate:"omitempty,min=2"`
	StepDelay         string  `toml:"step_delay"`
	JobTimeout        string  `toml:"job_timeout"`
	PageSize          int     `toml:"page_size" validate:"omitempty,min=10"`
	RateLimit         int     `toml:"rate_limit" validate:"omitempty,min=1"` // requests per second
	RetryMaxAttempts  int     `toml:"retry_max_attempts" validate:"omitempty,min=2"`
	RetryBaseDelay    string  `toml:"retry_base_delay"`
	RetryMaxDelay     string  `toml:"retry_max_delay"`
	RetryJitter       float64 `toml:"retry_jitter" validate:"gte=0,lte=1"`
	EnrichConcurrency int     `toml:"enrich_concurrency" validate:"omitempty,min=1,max=32"`
	EnrichCacheSize   int     `toml:"enrich_cache_size" validate:"omitempty,min=16"`
	EnrichCacheTTL    string  `toml:"enrich_cache_ttl"`
}

// NewDefaultConfig returns the configuration defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8190,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/reperio",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "500ms",
			Concurrency:       4,
			VisibilityTimeout: "2m",
			MaxReceive:        5,
			QueueName:         "continuations",
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "*/1 * * * *",
		},
		Apify: ApifyConfig{
			BaseURL:    "https://api.apify.com/v2",
			RunTimeout: "60s",
		},
		Providers: map[string]ProviderSettings{},
	}
}

// LoadFromFiles loads configuration from files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files. Validation runs after all overrides are applied.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies REPERIO_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REPERIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("REPERIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("REPERIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("REPERIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("REPERIO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if pollInterval := os.Getenv("REPERIO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("REPERIO_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("REPERIO_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}

	if secret := os.Getenv("REPERIO_SIGNING_SECRET"); secret != "" {
		config.Signing.Secret = secret
	}

	if token := os.Getenv("REPERIO_APIFY_TOKEN"); token != "" {
		config.Apify.Token = token
	} else if token := os.Getenv("APIFY_API_TOKEN"); token != "" {
		config.Apify.Token = token
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the full configuration, including the provider floors.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Duration fields are strings in TOML; make sure they parse.
	durations := map[string]string{
		"queue.poll_interval":      c.Queue.PollInterval,
		"queue.visibility_timeout": c.Queue.VisibilityTimeout,
		"apify.run_timeout":        c.Apify.RunTimeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	for platform, settings := range c.Providers {
		if err := settings.validateDurations(); err != nil {
			return fmt.Errorf("providers.%s: %w", platform, err)
		}
	}

	return nil
}

func (p ProviderSettings) validateDurations() error {
	durations := map[string]string{
		"step_delay":       p.StepDelay,
		"job_timeout":      p.JobTimeout,
		"retry_base_delay": p.RetryBaseDelay,
		"retry_max_delay":  p.RetryMaxDelay,
		"enrich_cache_ttl": p.EnrichCacheTTL,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	return nil
}

// ParseDurationOr parses a duration string, falling back to def when the
// string is empty or invalid.
func ParseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
