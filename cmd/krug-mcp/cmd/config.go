package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/krug-dev/krug-mcp/internal/config"
)

var configDev bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration krug-mcp would start with, after the config file,
environment overrides and defaults are applied. Secrets are masked.

Exits non-zero if the configuration does not validate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigRaw()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if configDev {
			cfg.DevMode = true
		}
		cfg.SetDevDefaults()

		out := cmd.OutOrStdout()
		if file := config.ConfigFileUsed(); file != "" {
			fmt.Fprintf(out, "# loaded from %s\n", file)
		}
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if _, err := out.Write(data); err != nil {
			return err
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configDev, "dev", false, "apply development defaults")
	rootCmd.AddCommand(configCmd)
}
