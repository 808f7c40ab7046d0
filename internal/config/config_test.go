package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "archive"
log_level = "debug"

[postgres]
host = "db.internal"

[s3]
bucket = "liqlock-archive"
access_key = "ak"
secret_key = "sk"

[archive]
retention_days = 30
lock_ttl = "10m"

[server]
rate_window = "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "archive", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 30, cfg.Archive.RetentionDays)
	assert.Equal(t, 10*time.Minute, cfg.Archive.LockTTL.Duration)
	assert.Equal(t, 2*time.Second, cfg.Server.RateWindow.Duration)

	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIQLOCK_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LIQLOCK_SERVER_PORT", "9090")
	t.Setenv("LIQLOCK_SERVER_VERIFY_SIGNATURES", "false")
	t.Setenv("LIQLOCK_NOTIFY_EVENTS", "withdrawal, underlying_returned")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Server.VerifySignatures)
	assert.Equal(t, []string{"withdrawal", "underlying_returned"}, cfg.Notify.Events)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "unknown mode",
			mutate: func(c *Config) { c.Mode = "trade" },
			want:   "unknown mode",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.LogLevel = "verbose" },
			want:   "unknown log_level",
		},
		{
			name:   "missing custodian url",
			mutate: func(c *Config) { c.Custodian.BaseURL = "" },
			want:   "custodian: base_url",
		},
		{
			name:   "bad holding address",
			mutate: func(c *Config) { c.Custodian.HoldingAddress = "not-an-address" },
			want:   "holding_address",
		},
		{
			name: "encrypted secret without password",
			mutate: func(c *Config) {
				c.Custodian.EncryptedSecretPath = "/etc/liqlock/secret.json"
			},
			want: "secret_password",
		},
		{
			name:   "missing redis addr",
			mutate: func(c *Config) { c.Redis.Addr = "" },
			want:   "redis: addr",
		},
		{
			name: "archive mode without bucket",
			mutate: func(c *Config) {
				c.Mode = "archive"
			},
			want: "s3: bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Custodian.APISecret = "hunter2"
	cfg.Postgres.Password = "pgpass"
	cfg.Server.APIKey = "key"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "[REDACTED]", red.Custodian.APISecret)
	assert.Equal(t, "[REDACTED]", red.Postgres.Password)
	assert.Equal(t, "[REDACTED]", red.Server.APIKey)
	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Custodian.APISecret)
}
