package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marmos91/dittodav/internal/cli/prompt"
	"github.com/marmos91/dittodav/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample DittoDAV configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittodav/config.yaml.
Use --config to specify a custom path. When the file already exists and
stdin is a terminal, you are asked before it is overwritten.

Examples:
  # Initialize with default location
  dittodav init

  # Initialize with custom path
  dittodav init --config /etc/dittodav/config.yaml

  # Force overwrite existing config
  dittodav init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	force := initForce
	if _, err := os.Stat(configPath); err == nil && !force && term.IsTerminal(int(os.Stdin.Fd())) {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("%s exists. Overwrite", configPath), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted, existing configuration left untouched.")
			return nil
		}
		force = true
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to add stores and shares")
	fmt.Println("  2. Check it with: dittodav config validate")
	fmt.Printf("  3. Start the server with: dittodav start --config %s\n", configPath)
	return nil
}
