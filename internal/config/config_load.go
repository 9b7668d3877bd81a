package config

import (
	"os"
	"time"
)

func parseDurationLoose(v string) (time.Duration, error) {
	return time.ParseDuration(v)
}

// Load builds a Config from Default() overlaid with environment variables.
// There is no config file — every setting is env-driven so the service can
// run the same way in a container, a unit test, or a developer's shell.
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			*dst = atoiOr(v, *dst)
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	envStr("DATABASE_URL", &c.Database.DSN)
	if c.Database.DSN == "" {
		host := os.Getenv("DB_HOST")
		name := os.Getenv("DB_NAME")
		user := os.Getenv("DB_USER")
		if host != "" && name != "" && user != "" {
			port := atoiOr(os.Getenv("DB_PORT"), 5432)
			c.Database.DSN = AssembleDSN(host, port, name, user, os.Getenv("DB_PASSWORD"), os.Getenv("DB_SSLMODE"))
		}
	}
	envInt("DB_POOL_SIZE", &c.Database.PoolSize)

	envStr("API_HOST", &c.API.Host)
	envInt("API_PORT", &c.API.Port)
	envBool("GATEWAY_AUTH_REQUIRED", &c.API.AuthRequired)
	envStr("API_AUTH_TOKEN", &c.API.AuthToken)
	envInt("API_MAX_MESSAGE_CHARS", &c.API.MaxMessageChars)

	envStr("WS_HOST", &c.Gateway.Host)
	envInt("WS_PORT", &c.Gateway.Port)
	envStr("HMAC_SECRET", &c.Gateway.HMACSecret)
	if v := os.Getenv("WS_ALLOWED_ORIGINS"); v != "" {
		c.Gateway.AllowedOrigins = ParseOrigins(v)
	}

	envStr("CLEANUP_CRON", &c.Cleanup.Cron)
	if v := os.Getenv("CLEANUP_ACTION_RETENTION"); v != "" {
		if d, err := parseDurationLoose(v); err == nil {
			c.Cleanup.ActionRetention = d
		}
	}
	if v := os.Getenv("CLEANUP_MESSAGE_GRACE"); v != "" {
		if d, err := parseDurationLoose(v); err == nil {
			c.Cleanup.MessageGrace = d
		}
	}
	if v := os.Getenv("CLEANUP_SNAPSHOT_RETENTION"); v != "" {
		if d, err := parseDurationLoose(v); err == nil {
			c.Cleanup.SnapshotRetention = d
		}
	}

	envBool("TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envBool("TELEMETRY_INSECURE", &c.Telemetry.Insecure)
	envStr("TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)

	envStr("LOG_LEVEL", &c.LogLevel)
	envStr("LOG_FORMAT", &c.LogFormat)

	if v := os.Getenv("MESSAGE_TTL"); v != "" {
		if d, err := parseDurationLoose(v); err == nil {
			c.MessageTTL = d
		}
	}
}
