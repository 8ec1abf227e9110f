package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/internal/cli/health"
	"github.com/marmos91/tollgate/internal/cli/output"
	"github.com/marmos91/tollgate/internal/cli/timeutil"
)

var (
	statusOutput  string
	statusPidFile string
	statusPort    int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the Tollgate server.

This command checks the server health by calling the health endpoint
and displays status, uptime, and replay cache occupancy.

Examples:
  # Check status (uses default settings)
  tollgate status

  # Check status with custom gateway port
  tollgate status --port 9000

  # Output as JSON
  tollgate status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/tollgate/tollgate.pid)")
	statusCmd.Flags().IntVar(&statusPort, "port", 8000, "Gateway HTTP port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running         bool   `json:"running" yaml:"running"`
	PID             int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message         string `json:"message" yaml:"message"`
	Version         string `json:"version,omitempty" yaml:"version,omitempty"`
	Uptime          string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	ReplayCacheSize int    `json:"replay_cache_size" yaml:"replay_cache_size"`
	Healthy         bool   `json:"healthy" yaml:"healthy"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{
		Running: false,
		Healthy: false,
		Message: "Server is not running",
	}

	// Use default PID file if not specified
	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	// Check PID file first
	pidData, err := os.ReadFile(pidPath)
	if err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if err == nil {
			// Check if process is running
			process, err := os.FindProcess(pid)
			if err == nil {
				// On Unix, FindProcess always succeeds, we need to send signal 0 to check
				err = process.Signal(syscall.Signal(0))
				if err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	// Check health endpoint (works for both daemon and foreground mode)
	healthURL := fmt.Sprintf("http://localhost:%d/health", statusPort)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(healthURL)
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var healthResp health.Response
		if err := json.NewDecoder(resp.Body).Decode(&healthResp); err == nil {
			status.Running = true
			status.Healthy = healthResp.Healthy()
			status.Version = healthResp.Version
			status.Uptime = timeutil.FormatUptime(healthResp.UptimeSeconds)
			status.ReplayCacheSize = healthResp.ReplayCacheSize
			if status.Healthy {
				status.Message = "Server is running and healthy"
			} else {
				status.Message = fmt.Sprintf("Server is running but unhealthy: %s", healthResp.Status)
			}
		} else {
			status.Running = true
			status.Message = "Server is running but health response invalid"
		}
	} else if status.Running {
		// PID file says running but health check failed
		status.Message = "Server process exists but health check failed"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("Tollgate Server Status")
	fmt.Println("======================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:        \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:        \033[33m● Running (unhealthy)\033[0m\n")
		}
		if status.PID != 0 {
			fmt.Printf("  PID:           %d\n", status.PID)
		}
		if status.Version != "" {
			fmt.Printf("  Version:       %s\n", status.Version)
		}
		if status.Uptime != "" {
			fmt.Printf("  Uptime:        %s\n", status.Uptime)
		}
		fmt.Printf("  Replay cache:  %d entries\n", status.ReplayCacheSize)
	} else {
		fmt.Printf("  Status:        \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
