package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the tollgate configuration.
//
// This structure captures all static configuration of the gateway:
//   - Service identity (name, version, environment)
//   - HTTP server settings (bind address, timeouts)
//   - Logging configuration
//   - Credential verification (key material, algorithm, clock drift)
//   - Rate limiting and replay cache tuning
//   - Trust score provider selection (direct, cached, remote)
//   - Database connection (trust score persistence)
//   - Telemetry (decision events, tracing, profiling) and metrics
//
// Configuration sources (in order of precedence):
//  1. Environment variables (exact keys, no prefix: PORT, JWT_ALGORITHM, ...)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Every key has a default registered with viper, so a pure environment
// deployment works without any configuration file.
type Config struct {
	// AppName is the service name reported by the status endpoints and
	// stamped on telemetry.
	AppName string `mapstructure:"app_name" yaml:"app_name"`

	// AppVersion is the service version reported by the status endpoints.
	AppVersion string `mapstructure:"app_version" yaml:"app_version"`

	// Environment selects the deployment environment. Production enables
	// additional startup hardening (see Validate).
	Environment string `mapstructure:"environment" validate:"required,oneof=development staging production" yaml:"environment"`

	// Host is the interface the HTTP server binds to.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the HTTP port for the gateway endpoints.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Log controls log output behavior
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Server contains HTTP server timeout tuning
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// JWT configures credential verification and signing material
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`

	// RateLimit configures the admission token bucket
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Score configures the trust score provider
	Score ScoreConfig `mapstructure:"score" yaml:"score"`

	// ReplayCache configures replay detection
	ReplayCache ReplayCacheConfig `mapstructure:"replay_cache" yaml:"replay_cache"`

	// Telemetry configures decision events, tracing, and profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Database configures trust score persistence (SQLite or PostgreSQL)
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// RedisURL points the score cache at a shared Redis instance. Setting
	// it implies the redis cache backend unless one is chosen explicitly.
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url,omitempty"`
}

// LogConfig controls logging behavior.
type LogConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig contains HTTP server timeout tuning.
// The bind address lives at the top level (Host, Port) because those keys
// predate this section.
type ServerConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// JWTConfig configures credential verification.
//
// The gateway only ever loads the public key. The private key path exists
// for the token CLI, which mints test credentials.
type JWTConfig struct {
	// PublicKeyPath is the PEM file holding the verification key.
	// Required for serving; in production, startup aborts without it.
	PublicKeyPath string `mapstructure:"public_key_path" yaml:"public_key_path"`

	// PrivateKeyPath is the PEM file holding the signing key.
	// Only the token CLI reads this. Default: ./keys/private_key.pem
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path,omitempty"`

	// Algorithm is the expected signing algorithm. Asymmetric only.
	Algorithm string `mapstructure:"algorithm" validate:"required,oneof=RS256 RS384 RS512 ES256 ES384 ES512" yaml:"algorithm"`

	// ClockDriftSeconds widens the exp/nbf checks to tolerate clock skew.
	// Default: 30
	ClockDriftSeconds int `mapstructure:"clock_drift_seconds" validate:"gte=0" yaml:"clock_drift_seconds"`

	// WatchKey reloads the public key when the file changes, so rotation
	// does not require a restart.
	WatchKey bool `mapstructure:"watch_key" yaml:"watch_key,omitempty"`
}

// RateLimitConfig configures the admission token bucket.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained quota. Zero disables limiting.
	// Default: 100
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" validate:"gte=0" yaml:"requests_per_minute"`

	// BurstSize is the bucket capacity.
	// Default: 120
	BurstSize int `mapstructure:"burst_size" validate:"gte=0" yaml:"burst_size"`
}

// ScoreConfig configures the trust score provider.
type ScoreConfig struct {
	// ProviderType selects the lookup strategy.
	// Valid values: direct (database), cached (database behind a TTL
	// cache), remote (external score API behind a circuit breaker)
	ProviderType string `mapstructure:"provider_type" validate:"required,oneof=direct cached remote" yaml:"provider_type"`

	// APIURL is the remote score API base URL. Required for the remote
	// provider.
	APIURL string `mapstructure:"api_url" yaml:"api_url,omitempty"`

	// APIKey is sent as a bearer token to the remote score API.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// CacheTTLSeconds bounds how long cached scores are served.
	// Default: 300
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" validate:"gte=0" yaml:"cache_ttl_seconds"`

	// CacheBackend selects where cached scores live.
	// Valid values: memory, redis, badger. Defaults to redis when a
	// Redis URL is configured, memory otherwise.
	CacheBackend string `mapstructure:"cache_backend" validate:"omitempty,oneof=memory redis badger" yaml:"cache_backend,omitempty"`

	// CacheBadgerPath is the on-disk directory for the badger backend.
	CacheBadgerPath string `mapstructure:"cache_badger_path" yaml:"cache_badger_path,omitempty"`
}

// ReplayCacheConfig configures replay detection.
type ReplayCacheConfig struct {
	// PurgeIntervalSeconds is the background purge cadence. Negative
	// disables the background purge.
	// Default: 300
	PurgeIntervalSeconds int `mapstructure:"purge_interval_seconds" yaml:"purge_interval_seconds"`

	// MaxSize bounds the number of tracked credential IDs.
	// Default: 1000000
	MaxSize int `mapstructure:"max_size" validate:"gte=0" yaml:"max_size"`
}

// TelemetryConfig configures decision events, tracing, and profiling.
type TelemetryConfig struct {
	// EmitEnabled controls whether decision and error events are emitted.
	// Default: true
	EmitEnabled bool `mapstructure:"emit_enabled" yaml:"emit_enabled"`

	// Version is the event schema version stamped on every record.
	// Default: 1.0.0
	Version string `mapstructure:"version" yaml:"version"`

	// Sink is the event destination: stdout, stderr, a file path, or an
	// s3://bucket/prefix URL.
	Sink string `mapstructure:"sink" yaml:"sink"`

	// Tracing contains OpenTelemetry distributed tracing configuration
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// TracingConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: cpu, alloc and inuse memory, goroutines
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics endpoint is served; the internal
// counters still run because the status endpoints read them.
type MetricsConfig struct {
	// Enabled controls whether the Prometheus scrape endpoint is served
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// DatabaseConfig configures trust score persistence.
type DatabaseConfig struct {
	// Type selects the backend.
	// Valid values: sqlite (single-node, default), postgres
	Type string `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres" yaml:"type,omitempty"`

	// URL is a complete PostgreSQL connection string. When set it forces
	// the postgres backend and overrides the discrete fields below.
	URL string `mapstructure:"url" yaml:"url,omitempty"`

	// SQLitePath is the SQLite database file.
	// Default: $XDG_DATA_HOME/tollgate/scores.db
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty"`

	// Postgres contains the discrete PostgreSQL connection settings
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`
}

// PostgresConfig contains discrete PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`
	Name     string `mapstructure:"name" yaml:"name,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full" yaml:"ssl_mode,omitempty"`
}

// IsProduction reports whether the production hardening rules apply.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (exact keys, no prefix)
//  2. Configuration file
//  3. Default values
//
// The config file is optional: when none is found the environment and
// defaults alone produce a complete configuration.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks. This always
	// runs, file or not, so environment-only deployments resolve through
	// the registered defaults.
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if an explicitly requested config file exists and provides
// user-friendly instructions if not.
//
// Unlike the config-file-centric tools this grew out of, a missing default
// config file is fine here: the gateway is routinely deployed on
// environment variables alone.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  tollgate init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions (0600 = owner read/write only).
	// Config files may contain database passwords and score API keys.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use exact keys with no prefix:
	// PORT, JWT_PUBLIC_KEY_PATH, RATE_LIMIT_REQUESTS_PER_MINUTE, ...
	// Nested viper keys map through the replacer, so
	// "jwt.clock_drift_seconds" resolves JWT_CLOCK_DRIFT_SECONDS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register a default for every key. AutomaticEnv only surfaces
	// variables for keys viper knows about, so this is what makes
	// environment-only deployment work.
	setDefaults(v)

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/tollgate/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// setDefaults registers every configuration key with its default value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "tollgate")
	v.SetDefault("app_version", "0.1.0")
	v.SetDefault("environment", "development")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("shutdown_timeout", "10s")

	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.private_key_path", "./keys/private_key.pem")
	v.SetDefault("jwt.algorithm", "RS256")
	v.SetDefault("jwt.clock_drift_seconds", 30)
	v.SetDefault("jwt.watch_key", false)

	v.SetDefault("rate_limit.requests_per_minute", 100)
	v.SetDefault("rate_limit.burst_size", 120)

	v.SetDefault("score.provider_type", "direct")
	v.SetDefault("score.api_url", "")
	v.SetDefault("score.api_key", "")
	v.SetDefault("score.cache_ttl_seconds", 300)
	v.SetDefault("score.cache_backend", "")
	v.SetDefault("score.cache_badger_path", "")

	v.SetDefault("replay_cache.purge_interval_seconds", 300)
	v.SetDefault("replay_cache.max_size", 1_000_000)

	v.SetDefault("telemetry.emit_enabled", true)
	v.SetDefault("telemetry.version", "1.0.0")
	v.SetDefault("telemetry.sink", "stdout")
	v.SetDefault("telemetry.tracing.enabled", false)
	v.SetDefault("telemetry.tracing.endpoint", "localhost:4317")
	v.SetDefault("telemetry.tracing.insecure", true)
	v.SetDefault("telemetry.tracing.sample_rate", 1.0)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.endpoint", "http://localhost:4040")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("database.type", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "")
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.name", "")
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.ssl_mode", "disable")

	v.SetDefault("redis_url", "")
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// Passing a DecodeHook option replaces viper's default hooks, so the
// comma-split hook for string slices (profile_types from environment) is
// composed back in here.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "1h"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tollgate")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "tollgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}
