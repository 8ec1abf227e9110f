package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/internal/logger"
	"github.com/marmos91/tollgate/internal/telemetry"
	"github.com/marmos91/tollgate/pkg/api"
	"github.com/marmos91/tollgate/pkg/api/handlers"
	"github.com/marmos91/tollgate/pkg/config"
	"github.com/marmos91/tollgate/pkg/gateway"
	"github.com/marmos91/tollgate/pkg/gateway/ratelimit"
	"github.com/marmos91/tollgate/pkg/gateway/replay"
	"github.com/marmos91/tollgate/pkg/gateway/score"
	"github.com/marmos91/tollgate/pkg/gateway/token"
	"github.com/marmos91/tollgate/pkg/store"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Tollgate server",
	Long: `Start the Tollgate admission gateway with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/tollgate/config.yaml.

Examples:
  # Start in background (default)
  tollgate start

  # Start in foreground
  tollgate start --foreground

  # Start with custom config file
  tollgate start --config /etc/tollgate/config.yaml

  # Start with environment variable overrides
  PORT=9000 LOG_LEVEL=DEBUG tollgate start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/tollgate/tollgate.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/tollgate/tollgate.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry tracing (if enabled)
	telemetryShutdown, err := telemetry.Init(ctx, cfg.TracerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("Tollgate - Token-validating admission gateway")
	logger.Info("Log level", "level", cfg.Log.Level, "format", cfg.Log.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()), "environment", cfg.Environment)
	if telemetry.IsEnabled() {
		logger.Info("Tracing enabled", "endpoint", cfg.Telemetry.Tracing.Endpoint, "sample_rate", cfg.Telemetry.Tracing.SampleRate)
	} else {
		logger.Info("Tracing disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// The remote score provider talks to an external API and needs no
	// record store; direct and cached read scores from the database.
	var recordStore *store.GORMStore
	if cfg.Score.ProviderType != string(score.ProviderTypeRemote) {
		recordStore, err = store.New(ctx, cfg.StoreConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize record store: %w", err)
		}
		defer func() {
			if err := recordStore.Close(); err != nil {
				logger.Error("record store close error", "error", err)
			}
		}()
		logger.Info("Record store initialized", "type", cfg.Database.Type)
	}

	// Assemble the validation pipeline
	verifier, err := token.NewVerifier(cfg.VerifierConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize credential verifier: %w", err)
	}
	logger.Info("Credential verifier initialized", "algorithm", cfg.JWT.Algorithm, "key_path", cfg.JWT.PublicKeyPath)

	limiter := ratelimit.New(cfg.RateLimiterConfig())
	logger.Info("Rate limiter initialized", "requests_per_minute", cfg.RateLimit.RequestsPerMinute, "burst", cfg.RateLimit.BurstSize)

	replays := replay.New(cfg.ReplayConfig())

	var scoreStore score.ScoreStore
	if recordStore != nil {
		scoreStore = recordStore
	}
	scores, err := score.NewProvider(ctx, cfg.ScoreProviderConfig(), scoreStore)
	if err != nil {
		return fmt.Errorf("failed to initialize score provider: %w", err)
	}
	logger.Info("Score provider initialized", "type", cfg.Score.ProviderType)

	// Telemetry event emitter (decision and error events)
	sink, err := telemetry.NewSink(ctx, cfg.SinkConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry sink: %w", err)
	}
	emitter := telemetry.NewEmitter(cfg.EmitterConfig(sink))
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := emitter.Close(closeCtx); err != nil {
			logger.Error("telemetry emitter close error", "error", err)
		}
	}()

	metrics := gateway.NewMetrics(nil)
	metrics.WatchReplayCacheSize(replays.Size)

	engine, err := gateway.NewEngine(gateway.EngineConfig{
		Verifier: verifier,
		Limiter:  limiter,
		Replays:  replays,
		Scores:   scores,
		Metrics:  metrics,
		Emitter:  emitter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize gateway engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("engine close error", "error", err)
		}
	}()

	// Prometheus scrape endpoint on its own listener (if enabled)
	if cfg.Metrics.Enabled {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		metricsSrv := startMetricsServer(metrics, cfg.Metrics.Port)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Create gateway HTTP server
	srv := api.NewServer(cfg.APIConfig(), engine, handlers.ServiceInfo{
		AppName:     cfg.AppName,
		Version:     cfg.AppVersion,
		Environment: cfg.Environment,
	})

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for server to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// startMetricsServer serves the Prometheus registry on a dedicated port.
func startMetricsServer(metrics *gateway.Metrics, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	return srv
}

// startDaemon relaunches the binary with --foreground in a new session,
// detached from the terminal, with output going to the daemon log file.
func startDaemon() error {
	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	for _, dir := range []string{filepath.Dir(pidPath), filepath.Dir(logPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	// Refuse to start over a live instance; a PID file whose process is
	// gone is stale and gets cleaned up.
	if raw, err := os.ReadFile(pidPath); err == nil {
		var pid int
		if _, err := fmt.Sscanf(string(raw), "%d", &pid); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if process.Signal(syscall.Signal(0)) == nil {
					return fmt.Errorf("Tollgate is already running (PID %d)\nUse 'tollgate stop' to stop the running instance", pid)
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	cmd.Stdout = logHandle
	cmd.Stderr = logHandle

	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = logHandle.Close()

	fmt.Printf("Tollgate started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'tollgate stop' to stop the server")
	fmt.Println("Use 'tollgate status' to check server status")

	return nil
}
