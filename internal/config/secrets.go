package config

import "slices"

// RedactedConfig returns a copy of cfg with sensitive fields replaced by "***",
// safe to log. Slices are cloned so the copy cannot alias the original.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)

	redact(&out.Redis.URL)
	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Challenge.Users = slices.Clone(cfg.Challenge.Users)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Refresh.Metrics = slices.Clone(cfg.Refresh.Metrics)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
