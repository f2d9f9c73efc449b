package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/duraprobe/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default configuration file",
	Long: `Initialize a duraprobe configuration file with default values.

By default, the configuration file is created at $XDG_CONFIG_HOME/duraprobe/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  duraprobe init

  # Initialize with custom path
  duraprobe init --config ./duraprobe.yaml

  # Force overwrite existing config
  duraprobe init --force`,
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

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to pick a write path and barrier lists")
	fmt.Println("  2. Start a run with: duraprobe run")
	fmt.Println("  3. Cut power partway through, then check the survivor with: duraprobe verify <file>")

	return nil
}
