// Package config defines the top-level configuration for the signal engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MATCHPULSE_* environment variables.
type Config struct {
	Provider Provider       `toml:"provider"`
	Trends   TrendsConfig   `toml:"trends"`
	Analyzer AnalyzerConfig `toml:"analyzer"`
	Signals  SignalsConfig  `toml:"signals"`
	Clock    ClockConfig    `toml:"clock"`
	RL       RLConfig       `toml:"rl"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// Provider holds the live-score feed API parameters.
type Provider struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	// Leagues is the allow-list of league IDs to track; empty means all.
	Leagues []string `toml:"leagues"`
	// RequestsPerSecond throttles outbound feed calls.
	RequestsPerSecond float64  `toml:"requests_per_second"`
	RequestTimeout    duration `toml:"request_timeout"`
	// DetailConcurrency bounds parallel per-fixture detail fetches.
	DetailConcurrency int `toml:"detail_concurrency"`
}

// TrendsConfig holds the historical-trends service parameters. The service is
// optional; an empty base URL disables trend lookups entirely.
type TrendsConfig struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	RequestTimeout duration `toml:"request_timeout"`
	CacheTTL       duration `toml:"cache_ttl"`
}

// AnalyzerConfig holds the market-analysis service parameters.
type AnalyzerConfig struct {
	BaseURL        string   `toml:"base_url"`
	RequestTimeout duration `toml:"request_timeout"`
	// Bookmaker labels the pricing source attached to enriched signals.
	Bookmaker string `toml:"bookmaker"`
}

// MarketConfig holds the per-market-bucket admission policy.
type MarketConfig struct {
	Enabled            bool    `toml:"enabled"`
	MinConfidence      float64 `toml:"min_confidence"`
	MaxSignalsPerMatch int     `toml:"max_signals_per_match"`
}

// SignalsConfig holds signal lifecycle parameters.
type SignalsConfig struct {
	// Markets maps bucket name (ou, btts, next_goal, default) to its policy.
	Markets          map[string]MarketConfig `toml:"markets"`
	TTL              duration                `toml:"ttl"`
	MaturationWindow duration                `toml:"maturation_window"`
	Cooldown         duration                `toml:"cooldown"`
	MaxActiveDisplay int                     `toml:"max_active_display"`
}

// ClockConfig holds minute-normalization parameters.
type ClockConfig struct {
	StalenessThreshold duration `toml:"staleness_threshold"`
	CacheTTL           duration `toml:"cache_ttl"`
	FallbackEnabled    bool     `toml:"fallback_enabled"`
	FallbackTimeout    duration `toml:"fallback_timeout"`
	IdleEviction       duration `toml:"idle_eviction"`
}

// RLConfig holds the confidence agent's hyperparameters.
type RLConfig struct {
	LearningRate      float64 `toml:"learning_rate"`
	Epsilon           float64 `toml:"epsilon"`
	EpsilonDecay      float64 `toml:"epsilon_decay"`
	EpsilonMin        float64 `toml:"epsilon_min"`
	EpsilonMax        float64 `toml:"epsilon_max"`
	Discount          float64 `toml:"discount"`
	BufferSize        int     `toml:"buffer_size"`
	BatchSize         int     `toml:"batch_size"`
	TargetSyncEvery   int     `toml:"target_sync_every"`
	DoubleQ           bool    `toml:"double_q"`
	PrioritizedReplay bool    `toml:"prioritized_replay"`
	MaxStates         int     `toml:"max_states"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds the evaluation-loop parameters.
type PipelineConfig struct {
	TickInterval duration `toml:"tick_interval"`
	// ArchiveRetentionDays is how long expired signals stay in Postgres
	// before being shipped to object storage.
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey gates the API when set; empty disables authentication.
	APIKey string `toml:"api_key"`
	// RateLimitPerSecond is the per-client request budget; 0 disables
	// rate limiting.
	RateLimitPerSecond float64 `toml:"rate_limit_per_second"`
	RateLimitBurst     int     `toml:"rate_limit_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Provider: Provider{
			BaseURL:           "https://api.b365api.com",
			RequestsPerSecond: 2,
			RequestTimeout:    duration{10 * time.Second},
			DetailConcurrency: 6,
		},
		Trends: TrendsConfig{
			RequestTimeout: duration{8 * time.Second},
			CacheTTL:       duration{30 * time.Minute},
		},
		Analyzer: AnalyzerConfig{
			RequestTimeout: duration{10 * time.Second},
			Bookmaker:      "bet365",
		},
		Signals: SignalsConfig{
			Markets: map[string]MarketConfig{
				"ou":        {Enabled: true, MinConfidence: 70, MaxSignalsPerMatch: 2},
				"btts":      {Enabled: true, MinConfidence: 72, MaxSignalsPerMatch: 1},
				"next_goal": {Enabled: true, MinConfidence: 75, MaxSignalsPerMatch: 1},
				"default":   {Enabled: false, MinConfidence: 80, MaxSignalsPerMatch: 1},
			},
			TTL:              duration{10 * time.Minute},
			MaturationWindow: duration{90 * time.Second},
			Cooldown:         duration{5 * time.Minute},
			MaxActiveDisplay: 10,
		},
		Clock: ClockConfig{
			StalenessThreshold: duration{120 * time.Second},
			CacheTTL:           duration{90 * time.Second},
			FallbackEnabled:    false,
			FallbackTimeout:    duration{4 * time.Second},
			IdleEviction:       duration{6 * time.Hour},
		},
		RL: RLConfig{
			LearningRate:      0.1,
			Epsilon:           0.25,
			EpsilonDecay:      0.995,
			EpsilonMin:        0.02,
			EpsilonMax:        0.40,
			Discount:          0.95,
			BufferSize:        5000,
			BatchSize:         32,
			TargetSyncEvery:   100,
			DoubleQ:           true,
			PrioritizedReplay: true,
			MaxStates:         50000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "matchpulse",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "matchpulse-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			TickInterval:         duration{20 * time.Second},
			ArchiveRetentionDays: 90,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
		Notify: NotifyConfig{
			Events: []string{"signal_activated", "signal_expired", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, monitor, server)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Provider: the feed is mandatory in every mode that evaluates matches.
	needsFeed := c.Mode == "full" || c.Mode == "monitor"
	if needsFeed {
		if c.Provider.BaseURL == "" {
			errs = append(errs, "provider: base_url must not be empty for mode "+c.Mode)
		}
		if c.Provider.APIKey == "" {
			errs = append(errs, "provider: api_key is required for mode "+c.Mode)
		}
	}
	if c.Provider.RequestsPerSecond <= 0 {
		errs = append(errs, "provider: requests_per_second must be > 0")
	}
	if c.Provider.DetailConcurrency < 1 {
		errs = append(errs, "provider: detail_concurrency must be >= 1")
	}

	// Signals
	if c.Signals.TTL.Duration <= 0 {
		errs = append(errs, "signals: ttl must be > 0")
	}
	if c.Signals.MaturationWindow.Duration < 0 {
		errs = append(errs, "signals: maturation_window must not be negative")
	}
	if c.Signals.MaxActiveDisplay < 1 {
		errs = append(errs, "signals: max_active_display must be >= 1")
	}
	for bucket, m := range c.Signals.Markets {
		if m.MinConfidence < 0 || m.MinConfidence > 100 {
			errs = append(errs, fmt.Sprintf("signals: markets.%s.min_confidence must be 0-100, got %g", bucket, m.MinConfidence))
		}
		if m.MaxSignalsPerMatch < 1 {
			errs = append(errs, fmt.Sprintf("signals: markets.%s.max_signals_per_match must be >= 1", bucket))
		}
	}

	// Clock
	if c.Clock.StalenessThreshold.Duration <= 0 {
		errs = append(errs, "clock: staleness_threshold must be > 0")
	}
	if c.Clock.CacheTTL.Duration <= 0 {
		errs = append(errs, "clock: cache_ttl must be > 0")
	}
	if c.Clock.FallbackEnabled && c.Clock.FallbackTimeout.Duration <= 0 {
		errs = append(errs, "clock: fallback_timeout must be > 0 when fallback_enabled")
	}

	// RL
	if c.RL.LearningRate <= 0 || c.RL.LearningRate > 1 {
		errs = append(errs, fmt.Sprintf("rl: learning_rate must be in (0, 1], got %g", c.RL.LearningRate))
	}
	if c.RL.Epsilon < 0 || c.RL.Epsilon > 1 {
		errs = append(errs, fmt.Sprintf("rl: epsilon must be in [0, 1], got %g", c.RL.Epsilon))
	}
	if c.RL.EpsilonMin > c.RL.EpsilonMax {
		errs = append(errs, "rl: epsilon_min must not exceed epsilon_max")
	}
	if c.RL.Discount < 0 || c.RL.Discount >= 1 {
		errs = append(errs, fmt.Sprintf("rl: discount must be in [0, 1), got %g", c.RL.Discount))
	}
	if c.RL.BufferSize < 1 {
		errs = append(errs, "rl: buffer_size must be >= 1")
	}
	if c.RL.BatchSize < 1 {
		errs = append(errs, "rl: batch_size must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Pipeline
	if c.Pipeline.TickInterval.Duration <= 0 {
		errs = append(errs, "pipeline: tick_interval must be > 0")
	}
	if c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
