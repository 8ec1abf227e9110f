package config

import (
	"time"

	"github.com/marmos91/tollgate/internal/telemetry"
	"github.com/marmos91/tollgate/pkg/api"
	"github.com/marmos91/tollgate/pkg/gateway/ratelimit"
	"github.com/marmos91/tollgate/pkg/gateway/replay"
	"github.com/marmos91/tollgate/pkg/gateway/score"
	"github.com/marmos91/tollgate/pkg/gateway/token"
	"github.com/marmos91/tollgate/pkg/store"
)

// This file maps the loaded configuration onto each component's own config
// struct. Components deliberately know nothing about viper, environment
// keys, or each other; the start command assembles them from these
// conversions.

// StoreConfig returns the trust score database configuration.
func (c *Config) StoreConfig() *store.Config {
	return &store.Config{
		Type: store.DatabaseType(c.Database.Type),
		URL:  c.Database.URL,
		SQLite: store.SQLiteConfig{
			Path: c.Database.SQLitePath,
		},
		Postgres: store.PostgresConfig{
			Host:     c.Database.Postgres.Host,
			Port:     c.Database.Postgres.Port,
			Database: c.Database.Postgres.Name,
			User:     c.Database.Postgres.User,
			Password: c.Database.Postgres.Password,
			SSLMode:  c.Database.Postgres.SSLMode,
		},
	}
}

// VerifierConfig returns the credential verifier configuration.
func (c *Config) VerifierConfig() token.Config {
	return token.Config{
		PublicKeyPath: c.JWT.PublicKeyPath,
		Algorithm:     c.JWT.Algorithm,
		ClockDrift:    time.Duration(c.JWT.ClockDriftSeconds) * time.Second,
		WatchKey:      c.JWT.WatchKey,
	}
}

// RateLimiterConfig returns the admission rate limiter configuration.
func (c *Config) RateLimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerMinute: c.RateLimit.RequestsPerMinute,
		Burst:             c.RateLimit.BurstSize,
	}
}

// ReplayConfig returns the replay cache configuration.
// A negative purge interval carries through and disables the background
// purge.
func (c *Config) ReplayConfig() replay.Config {
	return replay.Config{
		MaxSize:       c.ReplayCache.MaxSize,
		PurgeInterval: time.Duration(c.ReplayCache.PurgeIntervalSeconds) * time.Second,
	}
}

// ScoreProviderConfig returns the trust score provider configuration.
func (c *Config) ScoreProviderConfig() score.Config {
	return score.Config{
		Type: score.ProviderType(c.Score.ProviderType),
		Cache: score.CacheConfig{
			Backend:    score.CacheBackend(c.Score.CacheBackend),
			TTL:        time.Duration(c.Score.CacheTTLSeconds) * time.Second,
			RedisURL:   c.RedisURL,
			BadgerPath: c.Score.CacheBadgerPath,
		},
		Remote: score.RemoteConfig{
			APIURL: c.Score.APIURL,
			APIKey: c.Score.APIKey,
		},
	}
}

// APIConfig returns the HTTP server configuration.
func (c *Config) APIConfig() api.Config {
	return api.Config{
		Host:            c.Host,
		Port:            c.Port,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

// SinkConfig returns the decision event sink configuration.
func (c *Config) SinkConfig() telemetry.SinkConfig {
	return telemetry.SinkConfig{
		Destination: c.Telemetry.Sink,
	}
}

// EmitterConfig returns the decision event emitter configuration for an
// opened sink.
func (c *Config) EmitterConfig(sink telemetry.Sink) telemetry.EmitterConfig {
	return telemetry.EmitterConfig{
		Enabled: c.Telemetry.EmitEnabled,
		Version: c.Telemetry.Version,
		Sink:    sink,
	}
}

// TracerConfig returns the OpenTelemetry tracing configuration.
func (c *Config) TracerConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Tracing.Enabled,
		ServiceName:    c.AppName,
		ServiceVersion: c.AppVersion,
		Endpoint:       c.Telemetry.Tracing.Endpoint,
		Insecure:       c.Telemetry.Tracing.Insecure,
		SampleRate:     c.Telemetry.Tracing.SampleRate,
	}
}

// ProfilerConfig returns the Pyroscope continuous profiling configuration.
func (c *Config) ProfilerConfig() telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    c.AppName,
		ServiceVersion: c.AppVersion,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
}
