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
// built-in defaults, applies LIQLOCK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LIQLOCK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Custodian ──
	setStr(&cfg.Custodian.BaseURL, "LIQLOCK_CUSTODIAN_BASE_URL")
	setStr(&cfg.Custodian.APIKey, "LIQLOCK_CUSTODIAN_API_KEY")
	setStr(&cfg.Custodian.APISecret, "LIQLOCK_CUSTODIAN_API_SECRET")
	setStr(&cfg.Custodian.EncryptedSecretPath, "LIQLOCK_CUSTODIAN_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Custodian.SecretPassword, "LIQLOCK_CUSTODIAN_SECRET_PASSWORD")
	setStr(&cfg.Custodian.HoldingAddress, "LIQLOCK_CUSTODIAN_HOLDING_ADDRESS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LIQLOCK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LIQLOCK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LIQLOCK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LIQLOCK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LIQLOCK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LIQLOCK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LIQLOCK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LIQLOCK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LIQLOCK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LIQLOCK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LIQLOCK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LIQLOCK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LIQLOCK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LIQLOCK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LIQLOCK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LIQLOCK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LIQLOCK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LIQLOCK_S3_REGION")
	setStr(&cfg.S3.Bucket, "LIQLOCK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LIQLOCK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LIQLOCK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LIQLOCK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LIQLOCK_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "LIQLOCK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LIQLOCK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LIQLOCK_SERVER_API_KEY")
	setBool(&cfg.Server.VerifySignatures, "LIQLOCK_SERVER_VERIFY_SIGNATURES")
	setInt(&cfg.Server.RateLimit, "LIQLOCK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LIQLOCK_SERVER_RATE_WINDOW")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "LIQLOCK_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.LockTTL, "LIQLOCK_ARCHIVE_LOCK_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LIQLOCK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LIQLOCK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LIQLOCK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LIQLOCK_NOTIFY_EVENTS")

	// ── Top level ──
	setStr(&cfg.Mode, "LIQLOCK_MODE")
	setStr(&cfg.LogLevel, "LIQLOCK_LOG_LEVEL")
}

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
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
