// Package config implements the "dittodav config" subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd groups the configuration subcommands under "dittodav config".
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and check the configuration",
	Long: `Inspect and check DittoDAV configuration files.

Subcommands:
  validate  Check a file and warn about settings that lose data on restart
  show      Print the effective configuration with credentials masked
  schema    Emit a JSON schema for editors and CI

Create a starting file with 'dittodav init'.`,
}

func init() {
	Cmd.AddCommand(validateCmd, showCmd, schemaCmd)
}
