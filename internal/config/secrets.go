package config

// RedactedConfig returns a copy of cfg with every secret field masked, safe
// for logging at startup.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Custodian.APISecret)
	redact(&out.Custodian.SecretPassword)
	redact(&out.Postgres.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "[REDACTED]"
	}
}
