package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct tags cover the single-field rules (required, oneof, ranges); the
// checks below cover relationships between fields that tags cannot
// express, plus the production hardening rules.
//
// Production hardening: with ENVIRONMENT=production the gateway refuses
// to start with an incomplete verification or scoring setup instead of
// limping along on development fallbacks.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if cfg.Telemetry.Tracing.Enabled && cfg.Telemetry.Tracing.Endpoint == "" {
		return fmt.Errorf("telemetry.tracing.endpoint is required when tracing is enabled")
	}

	if cfg.Score.ProviderType == "remote" && cfg.Score.APIURL == "" {
		return fmt.Errorf("score.api_url is required for the remote score provider")
	}

	if cfg.Score.CacheBackend == "redis" && cfg.RedisURL == "" {
		return fmt.Errorf("redis_url is required for the redis score cache backend")
	}

	if cfg.IsProduction() {
		if err := validateProduction(cfg); err != nil {
			return err
		}
	}

	return nil
}

// validateProduction enforces the production hardening rules.
func validateProduction(cfg *Config) error {
	if cfg.JWT.PublicKeyPath == "" {
		return fmt.Errorf("jwt.public_key_path is required in production")
	}

	switch cfg.Score.ProviderType {
	case "remote":
		if cfg.Score.APIKey == "" {
			return fmt.Errorf("score.api_key is required in production for the remote score provider")
		}
	default:
		// direct and cached read scores from the database; production must
		// point at a real one rather than an implicit development SQLite file
		if !databaseConfigured(&cfg.Database) {
			return fmt.Errorf("database configuration is required in production for the %s score provider", cfg.Score.ProviderType)
		}
	}

	return nil
}

// databaseConfigured reports whether any database setting was provided
// explicitly.
func databaseConfigured(cfg *DatabaseConfig) bool {
	return cfg.Type != "" || cfg.URL != "" || cfg.SQLitePath != "" || cfg.Postgres.Host != ""
}
