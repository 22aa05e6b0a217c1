package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/horizon-monitor/metrics"
	"github.com/ethpandaops/horizon-monitor/services"
	"github.com/ethpandaops/horizon-monitor/utils"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Periodically export migration and reconciliation metrics",
	Long:  "Serve prometheus metrics and refresh the migration report and the protocol parameter reconciliation in a fixed interval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := utils.Config

		analytics, err := newMigrationAnalytics()
		if err != nil {
			return err
		}

		var networkService *services.NetworkService
		if cfg.Network.RpcUrl != "" {
			service, closeFn, err := newNetworkService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			networkService = service
		} else {
			logger.Warn("no rpc endpoint configured, protocol reconciliation disabled")
		}

		_, err = metrics.StartMetricsServer(ctx, logger.WithField("module", "metrics"), cfg.Metrics.Host, cfg.Metrics.Port)
		if err != nil {
			return err
		}

		interval := cfg.Metrics.Interval
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		runMonitor(ctx, analytics, networkService, interval)
		logger.Info("exiting...")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(ctx context.Context, analytics *services.MigrationAnalytics, networkService *services.NetworkService, interval time.Duration) {
	migrationMetrics := services.NewMigrationMetrics()
	metrics.AddPreCollectFn(migrationMetrics.RefreshAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refreshMonitor(ctx, analytics, networkService, migrationMetrics)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refreshMonitor(ctx context.Context, analytics *services.MigrationAnalytics, networkService *services.NetworkService, migrationMetrics *services.MigrationMetrics) {
	defer utils.HandleSubroutinePanic("monitor.refresh")

	t1 := time.Now()
	report, err := analytics.BuildReport(ctx, migrationReportOptions(false))
	if err != nil {
		utils.LogError(err, "error building migration report", 0)
	} else {
		migrationMetrics.Update(report)
		logger.WithFields(logrus.Fields{
			"active":   len(report.Active),
			"migrated": len(report.Migrated),
			"horizon":  len(report.Horizon),
			"stake":    report.StakeCoverage.String(),
			"queries":  report.QueryCoverage.String(),
		}).Infof("migration report updated (%v ms)", time.Since(t1).Milliseconds())
	}

	if networkService == nil {
		return
	}

	// mismatches are counted and logged by the network service
	if _, err := networkService.GetGraphNetwork(ctx); err != nil {
		utils.LogError(err, "error reconciling graph network", 0)
	}
	if _, err := networkService.GetSubgraphService(ctx); err != nil {
		utils.LogError(err, "error reconciling subgraph service", 0)
	}
	if _, err := networkService.GetDisputeManager(ctx); err != nil {
		utils.LogError(err, "error reconciling dispute manager", 0)
	}
}
