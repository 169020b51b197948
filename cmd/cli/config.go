package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configWrite string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration recon would run with after layering the config
file, RECON_* environment variables and flags over the defaults. With --write
the result is saved as a config file instead.`,
	Example: `  recon config
  recon config --write ./config.yaml`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVar(&configWrite, "write", "", "save the effective configuration to this path")
}

func runConfig(cmd *cobra.Command, _ []string) error {
	if configWrite != "" {
		if err := appConfig.Save(configWrite); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", configWrite)
		return nil
	}

	shown := *appConfig
	if shown.Database.Password != "" {
		shown.Database.Password = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
