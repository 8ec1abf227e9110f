package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/internal/cli/output"
	"github.com/marmos91/tollgate/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective Tollgate configuration.

Defaults, the configuration file, and environment variables are merged
the same way the server merges them at startup. By default outputs YAML
format. Use --output to change format.

Examples:
  # Show effective config as YAML
  tollgate config show

  # Show as JSON
  tollgate config show --output json

  # Show specific config file
  tollgate config show --config /etc/tollgate/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		return output.PrintJSON(os.Stdout, cfg)
	}
	return output.PrintYAML(os.Stdout, cfg)
}
