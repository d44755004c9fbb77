package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodav/internal/cli/output"
	"github.com/marmos91/dittodav/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the DittoDAV configuration file.

Checks for syntax errors, missing required fields, invalid values and
shares that reference unknown stores.

Examples:
  # Validate default config
  dittodav config validate

  # Validate specific config file
  dittodav config validate --config /etc/dittodav/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.PrintKeyValues(out, configSummary(cfg))
}

// configWarnings flags settings that are valid but likely unintended.
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if !cfg.Lock.IsEnabled() {
		warnings = append(warnings, "Locking disabled - LOCK requests will return 501")
	} else if !cfg.Lock.Persist {
		warnings = append(warnings, "Lock persistence disabled - explicit locks are lost on restart")
	}

	for _, share := range cfg.Shares {
		if cfg.Stores[share.Store].Type == "memory" {
			warnings = append(warnings, fmt.Sprintf("Share %s uses an in-memory store - content is lost on restart", share.Name))
		}
	}

	if cfg.Remote.Enabled && len(cfg.Remote.Endpoints) == 0 {
		warnings = append(warnings, "Remote transfers enabled without endpoints")
	}
	return warnings
}

func configSummary(cfg *config.Config) [][2]string {
	locking := "disabled"
	if cfg.Lock.IsEnabled() {
		locking = "enabled"
	}
	remote := "disabled"
	if cfg.Remote.Enabled {
		remote = "enabled"
	}

	return [][2]string{
		{"WebDAV port", strconv.Itoa(cfg.Server.Port)},
		{"Stores", strconv.Itoa(len(cfg.Stores))},
		{"Shares", strconv.Itoa(len(cfg.Shares))},
		{"Transfer mode", string(cfg.Handler.Mode)},
		{"Locking", locking},
		{"Properties", cfg.Properties.Type},
		{"Copy buffer", fmt.Sprintf("%s - %s", cfg.Copier.InitialSize, cfg.Copier.MaxSize)},
		{"Remote transfers", remote},
		{"Log level", cfg.Logging.Level},
	}
}
