// Package config defines the runtime configuration for the memory backend,
// sourced entirely from environment variables — there is no config file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	DSN      string // from DATABASE_URL; assembled from discrete vars if unset
	PoolSize int
}

// APIConfig configures the HTTP Surface.
type APIConfig struct {
	Host             string
	Port             int
	AuthRequired     bool
	AuthToken        string
	MaxMessageChars  int
}

// GatewayConfig configures the WebSocket Surface.
type GatewayConfig struct {
	Host          string
	Port          int
	HMACSecret    string
	AllowedOrigins []string
}

// CleanupConfig configures the Cleanup Worker's cadence and thresholds.
type CleanupConfig struct {
	Cron             string
	ActionRetention  time.Duration
	MessageGrace     time.Duration
	SnapshotRetention time.Duration
}

// TelemetryConfig holds OpenTelemetry export settings loaded from the
// TELEMETRY_* variables. No component reads them: tracing.Init installs a
// provider without an exporter.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
}

// Config is the root configuration for the memory backend service.
type Config struct {
	Database  DatabaseConfig
	API       APIConfig
	Gateway   GatewayConfig
	Cleanup   CleanupConfig
	Telemetry TelemetryConfig
	LogLevel  string
	LogFormat string

	MessageTTL time.Duration
}

// Default returns a Config with sensible defaults for local development.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			PoolSize: 10,
		},
		API: APIConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AuthRequired:    false,
			MaxMessageChars: 32000,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8081,
		},
		Cleanup: CleanupConfig{
			Cron:              "*/15 * * * *",
			ActionRetention:   30 * 24 * time.Hour,
			MessageGrace:      time.Hour,
			SnapshotRetention: 14 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "agent-memory-backend",
		},
		LogLevel:   "info",
		LogFormat:  "json",
		MessageTTL: time.Hour,
	}
}

// AssembleDSN builds a postgres:// DSN from discrete host/port/name/user/password
// fields when DSN itself was not supplied directly.
func AssembleDSN(host string, port int, name, user, password, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, password, host, port, name, sslmode)
}

// ParseOrigins splits a comma-separated CORS origin list, trimming whitespace.
func ParseOrigins(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoiOr(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
