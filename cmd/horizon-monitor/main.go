package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

var (
	configPath string
	logWriter  *utils.LogWriter
	logger     logrus.FieldLogger = logrus.StandardLogger()
)

var rootCmd = &cobra.Command{
	Use:   "horizon-monitor",
	Short: "Graph Horizon protocol monitor",
	Long:  "Cross checks Graph Horizon protocol state between the contracts and the network subgraph and tracks the indexer migration to Horizon",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logWriter != nil {
			logWriter.Dispose()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file, if empty string defaults will be used")
}

func loadConfig() error {
	cfg := &types.Config{}
	err := utils.ReadConfig(cfg, configPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	utils.Config = cfg

	logWriter, logger, err = utils.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"config":  configPath,
		"version": utils.BuildVersion,
		"release": utils.BuildRelease,
	}).Debugf("starting")

	return nil
}

func main() {
	ctx, cancel := utils.SignalContext(context.Background())

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		NewDisplay(os.Stderr).Error(formatCommandError(err))
		os.Exit(1)
	}
}

func formatCommandError(err error) string {
	switch kind := types.ErrorKindOf(err); kind {
	case types.ErrorKindSource, types.ErrorKindValidation:
		return fmt.Sprintf("%v error: %v", kind, err)
	default:
		return err.Error()
	}
}
