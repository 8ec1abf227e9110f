package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// This is called after loading config from file/env to ensure all fields
// have sensible values.
//
// Defaults here mirror the values registered with viper in setDefaults;
// this pass exists so a Config built in code (tests, the init command)
// ends up just as complete as a loaded one.
func ApplyDefaults(cfg *Config) {
	applyServiceDefaults(cfg)
	applyLogDefaults(&cfg.Log)
	applyServerDefaults(cfg)
	applyJWTDefaults(&cfg.JWT)
	applyRateLimitDefaults(&cfg.RateLimit)
	applyScoreDefaults(cfg)
	applyReplayCacheDefaults(&cfg.ReplayCache)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyDatabaseDefaults(&cfg.Database)
}

// applyServiceDefaults sets service identity and bind address defaults.
func applyServiceDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = "tollgate"
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = "0.1.0"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	// Environments compare lowercase
	cfg.Environment = strings.ToLower(cfg.Environment)

	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
}

// applyLogDefaults sets logging defaults and normalizes values.
func applyLogDefaults(cfg *LogConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets HTTP server timeout defaults.
func applyServerDefaults(cfg *Config) {
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

// applyJWTDefaults sets credential verification defaults.
// The public key path stays empty on purpose: serving requires one, and
// an invented default would only defer the error to the first request.
func applyJWTDefaults(cfg *JWTConfig) {
	if cfg.PrivateKeyPath == "" {
		cfg.PrivateKeyPath = "./keys/private_key.pem"
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "RS256"
	}
	if cfg.ClockDriftSeconds == 0 {
		cfg.ClockDriftSeconds = 30
	}
}

// applyRateLimitDefaults sets admission rate limit defaults.
func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 100
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 120
	}
}

// applyScoreDefaults sets trust score provider defaults.
// The cache backend is resolved here: an explicit choice wins, a
// configured Redis URL implies redis, everything else falls back to
// memory.
func applyScoreDefaults(cfg *Config) {
	if cfg.Score.ProviderType == "" {
		cfg.Score.ProviderType = "direct"
	}
	cfg.Score.ProviderType = strings.ToLower(cfg.Score.ProviderType)

	if cfg.Score.CacheTTLSeconds == 0 {
		cfg.Score.CacheTTLSeconds = 300
	}
	if cfg.Score.CacheBackend == "" {
		if cfg.RedisURL != "" {
			cfg.Score.CacheBackend = "redis"
		} else {
			cfg.Score.CacheBackend = "memory"
		}
	}
	if cfg.Score.CacheBackend == "badger" && cfg.Score.CacheBadgerPath == "" {
		cfg.Score.CacheBadgerPath = filepath.Join(getDataDir(), "score-cache")
	}
}

// applyReplayCacheDefaults sets replay detection defaults.
// A negative purge interval is preserved: it disables the background purge.
func applyReplayCacheDefaults(cfg *ReplayCacheConfig) {
	if cfg.PurgeIntervalSeconds == 0 {
		cfg.PurgeIntervalSeconds = 300
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 1_000_000
	}
}

// applyTelemetryDefaults sets decision event, tracing, and profiling defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.Sink == "" {
		cfg.Sink = "stdout"
	}

	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = "localhost:4317"
	}
	if cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
}

// applyMetricsDefaults sets Prometheus metrics server defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyDatabaseDefaults sets trust score persistence defaults.
// The backend type and the SQLite path resolve downstream in the store
// package; here we only settle what a saved config file should round-trip.
func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.URL != "" {
		cfg.Type = "postgres"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
}

// getDataDir returns the data directory path.
//
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share, or falls back to
// the current directory if home cannot be determined.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "tollgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "tollgate")
}

// GetDefaultConfig returns a configuration with all default values set.
// Used when no config file exists and as a template for the init command.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
