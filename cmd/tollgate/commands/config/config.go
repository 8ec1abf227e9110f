// Package config implements the configuration subcommands of the
// tollgate CLI.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd groups the configuration subcommands.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect and validate tollgate configuration files.

Run 'tollgate init' to generate a starting configuration. The
subcommands here work on an existing file:

  validate  Check a configuration file for errors
  show      Display the effective configuration
  schema    Emit the JSON schema for editor integration`,
}

func init() {
	Cmd.AddCommand(validateCmd, showCmd, schemaCmd)
}
