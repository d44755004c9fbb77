package config

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodav/internal/cli/output"
	"github.com/marmos91/dittodav/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current DittoDAV configuration, defaults applied.

By default outputs YAML. The table format lists the configured shares.

Examples:
  # Show config as YAML
  dittodav config show

  # Show as JSON
  dittodav config show --output json

  # List shares of a specific config file
  dittodav config show -o table --config /etc/dittodav/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json|table)")
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

	if format == output.FormatTable {
		return output.PrintTable(cmd.OutOrStdout(), sharesTable(cfg))
	}
	return output.Print(cmd.OutOrStdout(), format, cfg)
}

func sharesTable(cfg *config.Config) *output.TableData {
	table := output.NewTableData("Share", "Store", "Type", "Root", "Read Only")
	for _, share := range cfg.Shares {
		root := share.Root
		if root == "" {
			root = "/"
		}
		table.AddRow(share.Name, share.Store, cfg.Stores[share.Store].Type, root, strconv.FormatBool(share.ReadOnly))
	}
	return table
}
