package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

var migrationCmd = &cobra.Command{
	Use:   "migration",
	Short: "Show the indexer migration status for the horizon upgrade",
	Long:  "Probe the live versions of all active indexers and report migration, stake and query volume coverage of the horizon upgrade",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		migratedOnly, _ := cmd.Flags().GetBool("migrated-only")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		analytics, err := newMigrationAnalytics()
		if err != nil {
			return err
		}

		report, err := analytics.BuildReport(cmd.Context(), migrationReportOptions(migratedOnly))
		if err != nil {
			return fmt.Errorf("failed to fetch migration data: %w", err)
		}

		if jsonOutput {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(report)
		}

		printMigrationReport(NewDisplay(cmd.OutOrStdout()), report)
		return nil
	},
}

func init() {
	migrationCmd.Flags().Bool("migrated-only", false, "Only show indexers that run the horizon indexer stack")
	migrationCmd.Flags().Bool("json", false, "Print the report as json")
	rootCmd.AddCommand(migrationCmd)
}

func printMigrationReport(display *Display, report *types.MigrationReport) {
	display.Header("Graph Horizon - Migration Status")

	display.Section("Indexers by activity")
	display.KeyValue("Total indexers", report.TotalIndexers)
	display.KeyValue("Indexers with allocations", report.IndexersWithAllocations)
	display.KeyValue("Active indexers (last month)", len(report.Active))

	display.Section("Active indexers by migration status")
	display.KeyValue("Migrated indexers", len(report.Migrated))
	display.KeyValue("Migration pending", len(report.PendingMigration))

	display.Section("Active indexers by version")
	display.KeyValue("No URL", len(report.NoURL))
	display.KeyValue("Unreachable", len(report.Unreachable))
	display.KeyValue("Reachable", len(report.Reachable))
	display.KeyValue("• Pre-horizon indexer stack", len(report.PreHorizon))
	display.KeyValue(fmt.Sprintf("• Horizon indexer stack (>= %v)", report.HorizonVersion), len(report.Horizon))

	display.Section("Horizon coverage")
	stakeCoverage := report.StakeCoverage.String()
	if report.StakeCoverage.Valid {
		stakeCoverage = fmt.Sprintf("%v (%v / %v)", stakeCoverage, utils.FormatGRTCompact(report.TotalProvisioned), utils.FormatGRTCompact(report.TotalStaked))
	}
	display.KeyValue("Stake provisioned", stakeCoverage)

	queryCoverage := report.QueryCoverage.String()
	if report.QueryCoverage.Valid {
		queryCoverage = fmt.Sprintf("%v (%v / %v)", queryCoverage, utils.FormatAddCommas(report.HorizonQueries.String()), utils.FormatAddCommas(report.TotalQueries.String()))
	}
	display.KeyValue("Query volume", queryCoverage)

	if len(report.DailyVolume) > 0 {
		display.Section("Daily query volume")
		for _, day := range report.DailyVolume {
			display.KeyValue(time.Unix(day.DayStart, 0).UTC().Format(time.DateOnly), fmt.Sprintf("%v (%v / %v)", day.Coverage, utils.FormatAddCommas(day.HorizonQueries.String()), utils.FormatAddCommas(day.TotalQueries.String())))
		}
	}

	display.Section("Active indexers details")
	for _, group := range report.VersionGroups {
		fmt.Fprintf(display.out, "\n  Version %v (%v) - %v  %v:\n", group.Version, plural(len(group.Indexers), "indexer"), shareColor.Sprint(group.QueryShare), stakeColor.Sprint(group.StakeCoverage))

		for _, indexer := range group.Indexers {
			url := indexer.Url
			if url == "" {
				url = types.NotApplicable
			}
			display.IndexerRow(indexer.ID, indexer.QueryShare.String(), indexer.StakeCoverage.String(), utils.FormatGRTCompact(indexer.StakedTokens), url)
		}
	}

	if len(report.Warnings) > 0 {
		display.Divider()
		for _, warning := range report.Warnings {
			display.Warning(warning)
		}
	}
}
