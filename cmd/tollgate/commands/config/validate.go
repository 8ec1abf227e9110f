package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the Tollgate configuration.

Checks for syntax errors, missing required fields, and invalid values.
Warnings flag settings that pass validation but will fail at startup or
weaken the deployment.

Examples:
  # Validate default config
  tollgate config validate

  # Validate specific config file
  tollgate config validate --config /etc/tollgate/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	// Serving requires a verification key even outside production
	if cfg.JWT.PublicKeyPath == "" {
		warnings = append(warnings, "jwt.public_key_path not configured - 'tollgate start' will fail")
	}

	if cfg.Score.ProviderType == "remote" && cfg.Score.APIKey == "" {
		warnings = append(warnings, "score.api_key not configured - the scoring API may reject requests")
	}

	if cfg.RateLimit.RequestsPerMinute == 0 {
		warnings = append(warnings, "rate limiting disabled (rate_limit.requests_per_minute is 0)")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Environment:     %s\n", cfg.Environment)
	fmt.Printf("  Gateway port:    %d\n", cfg.Port)
	fmt.Printf("  Algorithm:       %s\n", cfg.JWT.Algorithm)
	fmt.Printf("  Score provider:  %s\n", cfg.Score.ProviderType)
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  Log level:       %s\n", cfg.Log.Level)

	return nil
}
