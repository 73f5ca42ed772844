package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MATCHPULSE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MATCHPULSE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Provider ──
	setStr(&cfg.Provider.BaseURL, "MATCHPULSE_PROVIDER_BASE_URL")
	setStr(&cfg.Provider.APIKey, "MATCHPULSE_PROVIDER_API_KEY")
	setStringSlice(&cfg.Provider.Leagues, "MATCHPULSE_PROVIDER_LEAGUES")
	setFloat64(&cfg.Provider.RequestsPerSecond, "MATCHPULSE_PROVIDER_REQUESTS_PER_SECOND")
	setDuration(&cfg.Provider.RequestTimeout, "MATCHPULSE_PROVIDER_REQUEST_TIMEOUT")
	setInt(&cfg.Provider.DetailConcurrency, "MATCHPULSE_PROVIDER_DETAIL_CONCURRENCY")

	// ── Trends ──
	setStr(&cfg.Trends.BaseURL, "MATCHPULSE_TRENDS_BASE_URL")
	setStr(&cfg.Trends.APIKey, "MATCHPULSE_TRENDS_API_KEY")
	setDuration(&cfg.Trends.RequestTimeout, "MATCHPULSE_TRENDS_REQUEST_TIMEOUT")
	setDuration(&cfg.Trends.CacheTTL, "MATCHPULSE_TRENDS_CACHE_TTL")

	// ── Analyzer ──
	setStr(&cfg.Analyzer.BaseURL, "MATCHPULSE_ANALYZER_BASE_URL")
	setDuration(&cfg.Analyzer.RequestTimeout, "MATCHPULSE_ANALYZER_REQUEST_TIMEOUT")
	setStr(&cfg.Analyzer.Bookmaker, "MATCHPULSE_ANALYZER_BOOKMAKER")

	// ── Signals ──
	setDuration(&cfg.Signals.TTL, "MATCHPULSE_SIGNALS_TTL")
	setDuration(&cfg.Signals.MaturationWindow, "MATCHPULSE_SIGNALS_MATURATION_WINDOW")
	setDuration(&cfg.Signals.Cooldown, "MATCHPULSE_SIGNALS_COOLDOWN")
	setInt(&cfg.Signals.MaxActiveDisplay, "MATCHPULSE_SIGNALS_MAX_ACTIVE_DISPLAY")

	// ── Clock ──
	setDuration(&cfg.Clock.StalenessThreshold, "MATCHPULSE_CLOCK_STALENESS_THRESHOLD")
	setDuration(&cfg.Clock.CacheTTL, "MATCHPULSE_CLOCK_CACHE_TTL")
	setBool(&cfg.Clock.FallbackEnabled, "MATCHPULSE_CLOCK_FALLBACK_ENABLED")
	setDuration(&cfg.Clock.FallbackTimeout, "MATCHPULSE_CLOCK_FALLBACK_TIMEOUT")
	setDuration(&cfg.Clock.IdleEviction, "MATCHPULSE_CLOCK_IDLE_EVICTION")

	// ── RL ──
	setFloat64(&cfg.RL.LearningRate, "MATCHPULSE_RL_LEARNING_RATE")
	setFloat64(&cfg.RL.Epsilon, "MATCHPULSE_RL_EPSILON")
	setFloat64(&cfg.RL.EpsilonDecay, "MATCHPULSE_RL_EPSILON_DECAY")
	setFloat64(&cfg.RL.EpsilonMin, "MATCHPULSE_RL_EPSILON_MIN")
	setFloat64(&cfg.RL.EpsilonMax, "MATCHPULSE_RL_EPSILON_MAX")
	setFloat64(&cfg.RL.Discount, "MATCHPULSE_RL_DISCOUNT")
	setInt(&cfg.RL.BufferSize, "MATCHPULSE_RL_BUFFER_SIZE")
	setInt(&cfg.RL.BatchSize, "MATCHPULSE_RL_BATCH_SIZE")
	setInt(&cfg.RL.TargetSyncEvery, "MATCHPULSE_RL_TARGET_SYNC_EVERY")
	setBool(&cfg.RL.DoubleQ, "MATCHPULSE_RL_DOUBLE_Q")
	setBool(&cfg.RL.PrioritizedReplay, "MATCHPULSE_RL_PRIORITIZED_REPLAY")
	setInt(&cfg.RL.MaxStates, "MATCHPULSE_RL_MAX_STATES")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MATCHPULSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "MATCHPULSE_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "MATCHPULSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MATCHPULSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MATCHPULSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MATCHPULSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MATCHPULSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MATCHPULSE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MATCHPULSE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MATCHPULSE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MATCHPULSE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MATCHPULSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MATCHPULSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MATCHPULSE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MATCHPULSE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MATCHPULSE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MATCHPULSE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "MATCHPULSE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MATCHPULSE_S3_REGION")
	setStr(&cfg.S3.Bucket, "MATCHPULSE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MATCHPULSE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MATCHPULSE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MATCHPULSE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MATCHPULSE_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.TickInterval, "MATCHPULSE_PIPELINE_TICK_INTERVAL")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "MATCHPULSE_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Pipeline.ArchiveInterval, "MATCHPULSE_PIPELINE_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MATCHPULSE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MATCHPULSE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MATCHPULSE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MATCHPULSE_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimitPerSecond, "MATCHPULSE_SERVER_RATE_LIMIT_PER_SECOND")
	setInt(&cfg.Server.RateLimitBurst, "MATCHPULSE_SERVER_RATE_LIMIT_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MATCHPULSE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MATCHPULSE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MATCHPULSE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MATCHPULSE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MATCHPULSE_MODE")
	setStr(&cfg.LogLevel, "MATCHPULSE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
