package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/horizon-monitor/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after merging defaults, the config file and environment variables. Secrets are redacted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := utils.RedactedConfig(utils.Config)
		out, err := yaml.Marshal(&redacted)
		if err != nil {
			return fmt.Errorf("error encoding config: %w", err)
		}

		display := NewDisplay(cmd.OutOrStdout())
		display.Header("Configuration")
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
