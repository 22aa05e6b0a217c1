package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

const (
	DefaultHorizonVersion = "1.7.0"
	DefaultVolumeWindow   = 10 * 24 * time.Hour
)

// IndexerListSource provides the indexer roster (indexers, provisions and latest allocations).
type IndexerListSource interface {
	GetIndexerList(ctx context.Context) (*types.IndexerList, error)
}

// DailyVolumeSource provides per indexer daily query volume.
type DailyVolumeSource interface {
	GetIndexerDailyData(ctx context.Context, sinceUnix int64) ([]*types.DailyDataPoint, error)
}

// VersionProber resolves the live versions of a set of indexers.
type VersionProber interface {
	ProbeAll(ctx context.Context, targets []types.ProbeTarget) []*types.ProbeResult
}

type MigrationReportOptions struct {
	HorizonVersion string
	VolumeWindow   time.Duration
	MigratedOnly   bool

	// Now defaults to the current time.
	Now time.Time
}

// MigrationInput is everything the migration report is computed from.
type MigrationInput struct {
	Now            time.Time
	HorizonVersion string
	MigratedOnly   bool

	Roster *types.IndexerList
	Probes []*types.ProbeResult

	VolumeAvailable bool
	DailyData       []*types.DailyDataPoint

	Warnings []string
}

// MigrationAnalytics builds the horizon migration and coverage report of the indexer fleet.
type MigrationAnalytics struct {
	rosterSource IndexerListSource
	volumeSource DailyVolumeSource
	prober       VersionProber
	logger       logrus.FieldLogger
}

// NewMigrationAnalytics creates the analytics service. volumeSource may be nil if no
// QoS subgraph is configured, all volume metrics are reported as not applicable then.
func NewMigrationAnalytics(rosterSource IndexerListSource, volumeSource DailyVolumeSource, prober VersionProber, logger logrus.FieldLogger) *MigrationAnalytics {
	return &MigrationAnalytics{
		rosterSource: rosterSource,
		volumeSource: volumeSource,
		prober:       prober,
		logger:       logger,
	}
}

// BuildReport loads the roster, probes the active indexers and loads the query volume
// concurrently, then aggregates everything after both have finished.
// Only a failing roster fetch fails the report.
func (m *MigrationAnalytics) BuildReport(ctx context.Context, opts MigrationReportOptions) (*types.MigrationReport, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	horizonVersion := opts.HorizonVersion
	if horizonVersion == "" {
		horizonVersion = DefaultHorizonVersion
	}
	volumeWindow := opts.VolumeWindow
	if volumeWindow <= 0 {
		volumeWindow = DefaultVolumeWindow
	}

	roster, err := m.rosterSource.GetIndexerList(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading indexer roster: %w", err)
	}

	activeSince := ActiveSince(now)
	targets := []types.ProbeTarget{}
	for _, indexer := range roster.Indexers {
		if IsActiveIndexer(indexer, activeSince) {
			targets = append(targets, types.ProbeTarget{
				ID:  indexer.ID,
				Url: indexer.Url,
			})
		}
	}

	input := MigrationInput{
		Now:            now,
		HorizonVersion: horizonVersion,
		MigratedOnly:   opts.MigratedOnly,
		Roster:         roster,
	}

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer utils.HandleSubroutinePanic("MigrationAnalytics.probe")

		input.Probes = m.prober.ProbeAll(ctx, targets)
	}()

	if m.volumeSource != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer utils.HandleSubroutinePanic("MigrationAnalytics.volume")

			dailyData, err := m.volumeSource.GetIndexerDailyData(ctx, now.Add(-volumeWindow).Unix())
			if err != nil {
				m.logger.WithError(err).Warn("error loading query volume, volume metrics are not available")
				input.Warnings = append(input.Warnings, fmt.Sprintf("query volume not available: %v", err))
				return
			}
			input.DailyData = dailyData
			input.VolumeAvailable = true
		}()
	} else {
		input.Warnings = append(input.Warnings, "query volume not available: QoS subgraph not configured")
	}

	wg.Wait()

	m.logger.Debugf("probed %v active indexers, loaded %v daily data points", len(targets), len(input.DailyData))

	return ComputeMigrationReport(&input), nil
}

// ActiveSince returns the unix timestamp one calendar month before now.
// Allocations created strictly after it mark an indexer as active.
func ActiveSince(now time.Time) int64 {
	return now.AddDate(0, -1, 0).Unix()
}

// IsActiveIndexer returns true if the indexer has an allocation created after activeSince.
func IsActiveIndexer(indexer *types.IndexerListEntry, activeSince int64) bool {
	for _, allocation := range indexer.Allocations {
		if allocation != nil && allocation.CreatedAt > activeSince {
			return true
		}
	}
	return false
}

type dayVolume struct {
	total   *big.Int
	horizon *big.Int
}

// ComputeMigrationReport aggregates the migration report. It never fails, metrics
// without data are reported as not applicable.
func ComputeMigrationReport(input *MigrationInput) *types.MigrationReport {
	horizonVersion := input.HorizonVersion
	if horizonVersion == "" {
		horizonVersion = DefaultHorizonVersion
	}
	roster := input.Roster
	if roster == nil {
		roster = &types.IndexerList{}
	}

	report := &types.MigrationReport{
		GeneratedAt:      input.Now,
		HorizonVersion:   horizonVersion,
		TotalIndexers:    len(roster.Indexers),
		Active:           []*types.IndexerStatus{},
		Migrated:         []*types.IndexerStatus{},
		PendingMigration: []*types.IndexerStatus{},
		NoURL:            []*types.IndexerStatus{},
		Unreachable:      []*types.IndexerStatus{},
		Reachable:        []*types.IndexerStatus{},
		PreHorizon:       []*types.IndexerStatus{},
		Horizon:          []*types.IndexerStatus{},
		TotalStaked:      new(big.Int),
		TotalProvisioned: new(big.Int),
		VolumeAvailable:  input.VolumeAvailable,
		DailyVolume:      []*types.DailyVolume{},
		VersionGroups:    []*types.VersionGroup{},
		Warnings:         input.Warnings,
	}

	provisionedByIndexer := map[string]*big.Int{}
	for _, provision := range roster.Provisions {
		indexerID := utils.CanonicalAddress(provision.IndexerID)
		tokens := utils.BigOrZero(provision.TokensProvisioned)

		if provisionedByIndexer[indexerID] == nil {
			provisionedByIndexer[indexerID] = new(big.Int)
		}
		provisionedByIndexer[indexerID].Add(provisionedByIndexer[indexerID], tokens)
		report.TotalProvisioned.Add(report.TotalProvisioned, tokens)
	}

	probesByIndexer := map[string]*types.ProbeResult{}
	for _, probe := range input.Probes {
		if probe != nil {
			probesByIndexer[utils.CanonicalAddress(probe.ID)] = probe
		}
	}

	activeSince := ActiveSince(input.Now)
	for _, indexer := range roster.Indexers {
		staked := utils.BigOrZero(indexer.StakedTokens)
		report.TotalStaked.Add(report.TotalStaked, staked)

		if len(indexer.Allocations) > 0 {
			report.IndexersWithAllocations++
		}
		if !IsActiveIndexer(indexer, activeSince) {
			continue
		}

		indexerID := utils.CanonicalAddress(indexer.ID)
		provisioned, migrated := provisionedByIndexer[indexerID]
		status := &types.IndexerStatus{
			ID:                indexer.ID,
			Url:               indexer.Url,
			Migrated:          migrated,
			StakedTokens:      new(big.Int).Set(staked),
			ProvisionedTokens: new(big.Int).Set(utils.BigOrZero(provisioned)),
		}
		status.StakeCoverage = types.NewPercentage(status.ProvisionedTokens, status.StakedTokens)

		switch probe := probesByIndexer[indexerID]; {
		case indexer.Url == "":
			status.Reachability = types.ReachabilityNoURL
		case probe == nil:
			status.Reachability = types.ReachabilityUnreachable
			status.ProbeError = "not probed"
		default:
			status.Reachability = probe.Reachability
			status.Version = probe.Version
			status.ProbeError = probe.Error
		}

		report.Active = append(report.Active, status)
		if status.Migrated {
			report.Migrated = append(report.Migrated, status)
		} else {
			report.PendingMigration = append(report.PendingMigration, status)
		}

		switch {
		case status.Reachability == types.ReachabilityNoURL:
			report.NoURL = append(report.NoURL, status)
		case !status.HasVersion():
			report.Unreachable = append(report.Unreachable, status)
		default:
			report.Reachable = append(report.Reachable, status)
			if utils.CompareVersions(status.Version, horizonVersion) >= 0 {
				report.Horizon = append(report.Horizon, status)
			} else {
				report.PreHorizon = append(report.PreHorizon, status)
			}
		}
	}

	report.StakeCoverage = types.NewPercentage(report.TotalProvisioned, report.TotalStaked)

	volumeByIndexer := aggregateVolume(report, input)
	for _, status := range report.Active {
		if !report.VolumeAvailable {
			continue
		}
		status.QueryCount = utils.BigOrZero(volumeByIndexer[utils.CanonicalAddress(status.ID)])
		status.QueryShare = types.NewPercentage(status.QueryCount, report.TotalQueries)
	}

	report.VersionGroups = groupByVersion(report, horizonVersion, input.MigratedOnly)

	return report
}

// aggregateVolume fills the daily series and the overall query coverage of the report
// and returns the query count per canonical indexer id.
func aggregateVolume(report *types.MigrationReport, input *MigrationInput) map[string]*big.Int {
	volumeByIndexer := map[string]*big.Int{}
	if !input.VolumeAvailable {
		return volumeByIndexer
	}

	horizonIndexers := map[string]bool{}
	for _, status := range report.Horizon {
		horizonIndexers[utils.CanonicalAddress(status.ID)] = true
	}

	report.TotalQueries = new(big.Int)
	report.HorizonQueries = new(big.Int)

	volumeByDay := map[int64]*dayVolume{}
	for _, point := range input.DailyData {
		if point == nil {
			continue
		}
		indexerID := utils.CanonicalAddress(point.IndexerID)
		queryCount := utils.BigOrZero(point.QueryCount)

		day := volumeByDay[point.DayStart]
		if day == nil {
			day = &dayVolume{
				total:   new(big.Int),
				horizon: new(big.Int),
			}
			volumeByDay[point.DayStart] = day
		}
		day.total.Add(day.total, queryCount)
		if horizonIndexers[indexerID] {
			day.horizon.Add(day.horizon, queryCount)
			report.HorizonQueries.Add(report.HorizonQueries, queryCount)
		}

		if volumeByIndexer[indexerID] == nil {
			volumeByIndexer[indexerID] = new(big.Int)
		}
		volumeByIndexer[indexerID].Add(volumeByIndexer[indexerID], queryCount)
		report.TotalQueries.Add(report.TotalQueries, queryCount)
	}

	for dayStart, day := range volumeByDay {
		report.DailyVolume = append(report.DailyVolume, &types.DailyVolume{
			DayStart:       dayStart,
			TotalQueries:   day.total,
			HorizonQueries: day.horizon,
			Coverage:       percentageOrZero(day.horizon, day.total),
		})
	}
	sort.Slice(report.DailyVolume, func(a, b int) bool {
		return report.DailyVolume[a].DayStart < report.DailyVolume[b].DayStart
	})

	if len(volumeByDay) > 0 {
		report.QueryCoverage = percentageOrZero(report.HorizonQueries, report.TotalQueries)
	}

	return volumeByIndexer
}

func percentageOrZero(part, total *big.Int) types.Percentage {
	if total.Sign() == 0 {
		return types.ZeroPercentage()
	}
	return types.NewPercentage(part, total)
}

// groupByVersion groups the active indexers by live version, newest version first and
// indexers without version last. With migratedOnly only indexers running at least
// horizonVersion are included.
func groupByVersion(report *types.MigrationReport, horizonVersion string, migratedOnly bool) []*types.VersionGroup {
	groups := []*types.VersionGroup{}
	groupMap := map[string]*types.VersionGroup{}
	var unversioned *types.VersionGroup

	for _, status := range report.Active {
		if migratedOnly && (!status.HasVersion() || utils.CompareVersions(status.Version, horizonVersion) < 0) {
			continue
		}

		// indexers without a live version share one group, never keyed by a served version string
		var group *types.VersionGroup
		if status.HasVersion() {
			group = groupMap[status.Version]
		} else {
			group = unversioned
		}

		if group == nil {
			group = &types.VersionGroup{
				Version:      types.NotApplicable,
				HasVersion:   status.HasVersion(),
				Indexers:     []*types.IndexerStatus{},
				StakedTokens: new(big.Int),
				Provisioned:  new(big.Int),
			}
			if report.VolumeAvailable {
				group.QueryCount = new(big.Int)
			}
			if group.HasVersion {
				group.Version = status.Version
				groupMap[status.Version] = group
			} else {
				unversioned = group
			}
			groups = append(groups, group)
		}

		group.Indexers = append(group.Indexers, status)
		group.StakedTokens.Add(group.StakedTokens, status.StakedTokens)
		group.Provisioned.Add(group.Provisioned, status.ProvisionedTokens)
		if group.QueryCount != nil && status.QueryCount != nil {
			group.QueryCount.Add(group.QueryCount, status.QueryCount)
		}
	}

	for _, group := range groups {
		group.StakeCoverage = types.NewPercentage(group.Provisioned, group.StakedTokens)
		if report.VolumeAvailable {
			group.QueryShare = types.NewPercentage(group.QueryCount, report.TotalQueries)
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].HasVersion != groups[b].HasVersion {
			return groups[a].HasVersion
		}
		va, vb := groups[a].Version, groups[b].Version
		if cmp := utils.CompareVersions(va, vb); cmp != 0 {
			return cmp > 0
		}
		return strings.Compare(va, vb) > 0
	})

	return groups
}
