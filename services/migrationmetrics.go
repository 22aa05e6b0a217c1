package services

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

var (
	migrationIndexers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "horizon_migration_indexers",
		Help: "Number of indexers by migration state",
	}, []string{"state"})
	migrationVersionIndexers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "horizon_migration_version_indexers",
		Help: "Number of active indexers by running version",
	}, []string{"version"})
	migrationStakeCoverage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_migration_stake_coverage_percent",
		Help: "Share of staked tokens provisioned to the subgraph service",
	})
	migrationQueryCoverage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_migration_query_coverage_percent",
		Help: "Share of queries served by indexers running the horizon stack",
	})
	migrationTotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_migration_staked_grt",
		Help: "Total staked GRT of all indexers",
	})
	migrationTotalProvisioned = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_migration_provisioned_grt",
		Help: "Total GRT provisioned to the subgraph service",
	})
	migrationLastUpdate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_migration_last_update_timestamp_seconds",
		Help: "Generation time of the last exported migration report",
	})
	migrationReportAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_migration_report_age_seconds",
		Help: "Age of the last exported migration report at scrape time",
	})
)

// MigrationMetrics exports migration reports as prometheus gauges.
type MigrationMetrics struct {
	mutex       sync.Mutex
	generatedAt time.Time
}

func NewMigrationMetrics() *MigrationMetrics {
	return &MigrationMetrics{}
}

func (mm *MigrationMetrics) Update(report *types.MigrationReport) {
	if report == nil {
		return
	}

	migrationIndexers.WithLabelValues("total").Set(float64(report.TotalIndexers))
	migrationIndexers.WithLabelValues("with_allocations").Set(float64(report.IndexersWithAllocations))
	migrationIndexers.WithLabelValues("active").Set(float64(len(report.Active)))
	migrationIndexers.WithLabelValues("migrated").Set(float64(len(report.Migrated)))
	migrationIndexers.WithLabelValues("pending").Set(float64(len(report.PendingMigration)))
	migrationIndexers.WithLabelValues("no_url").Set(float64(len(report.NoURL)))
	migrationIndexers.WithLabelValues("unreachable").Set(float64(len(report.Unreachable)))
	migrationIndexers.WithLabelValues("reachable").Set(float64(len(report.Reachable)))
	migrationIndexers.WithLabelValues("pre_horizon").Set(float64(len(report.PreHorizon)))
	migrationIndexers.WithLabelValues("horizon").Set(float64(len(report.Horizon)))

	migrationVersionIndexers.Reset()
	for _, group := range report.VersionGroups {
		// a served "N/A" version shares the label with the unversioned group
		migrationVersionIndexers.WithLabelValues(group.Version).Add(float64(len(group.Indexers)))
	}

	migrationStakeCoverage.Set(percentageGaugeValue(report.StakeCoverage))
	migrationQueryCoverage.Set(percentageGaugeValue(report.QueryCoverage))
	migrationTotalStaked.Set(utils.TokensToDecimal(report.TotalStaked).InexactFloat64())
	migrationTotalProvisioned.Set(utils.TokensToDecimal(report.TotalProvisioned).InexactFloat64())
	migrationLastUpdate.Set(float64(report.GeneratedAt.Unix()))

	mm.mutex.Lock()
	mm.generatedAt = report.GeneratedAt
	mm.mutex.Unlock()
	mm.refreshAge(report.GeneratedAt)
}

// RefreshAge updates the report age gauge, meant to run as metrics pre-collect hook.
func (mm *MigrationMetrics) RefreshAge() {
	mm.refreshAge(time.Now())
}

func (mm *MigrationMetrics) refreshAge(now time.Time) {
	mm.mutex.Lock()
	generatedAt := mm.generatedAt
	mm.mutex.Unlock()

	if generatedAt.IsZero() {
		return
	}
	age := now.Sub(generatedAt)
	if age < 0 {
		age = 0
	}
	migrationReportAge.Set(age.Seconds())
}

// not applicable percentages are exported as NaN
func percentageGaugeValue(p types.Percentage) float64 {
	if !p.Valid {
		return math.NaN()
	}
	return p.Float64()
}
