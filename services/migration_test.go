package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/horizon-monitor/types"
)

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeRosterSource struct {
	roster *types.IndexerList
	err    error
}

func (f *fakeRosterSource) GetIndexerList(ctx context.Context) (*types.IndexerList, error) {
	return f.roster, f.err
}

type fakeVolumeSource struct {
	data  []*types.DailyDataPoint
	err   error
	since int64
}

func (f *fakeVolumeSource) GetIndexerDailyData(ctx context.Context, sinceUnix int64) ([]*types.DailyDataPoint, error) {
	f.since = sinceUnix
	return f.data, f.err
}

type fakeProber struct {
	versions map[string]string
	targets  []types.ProbeTarget
}

func (f *fakeProber) ProbeAll(ctx context.Context, targets []types.ProbeTarget) []*types.ProbeResult {
	f.targets = targets
	results := make([]*types.ProbeResult, len(targets))
	for i, target := range targets {
		result := &types.ProbeResult{ID: target.ID, Url: target.Url}
		switch version, ok := f.versions[target.ID]; {
		case target.Url == "":
			result.Reachability = types.ReachabilityNoURL
		case ok:
			result.Reachability = types.ReachabilityReachable
			result.Version = version
		default:
			result.Reachability = types.ReachabilityUnreachable
			result.Error = "status 502"
		}
		results[i] = result
	}
	return results
}

func activeIndexer(id, url string, staked int64) *types.IndexerListEntry {
	return &types.IndexerListEntry{
		ID:           id,
		Url:          url,
		StakedTokens: big.NewInt(staked),
		Allocations:  []*types.Allocation{{CreatedAt: testNow.Add(-24 * time.Hour).Unix()}},
	}
}

func provision(indexerID string, tokens int64) *types.Provision {
	return &types.Provision{
		IndexerID:         indexerID,
		TokensProvisioned: big.NewInt(tokens),
		TokensAllocated:   big.NewInt(0),
		TokensThawing:     big.NewInt(0),
	}
}

func statusIDs(statuses []*types.IndexerStatus) []string {
	ids := make([]string, len(statuses))
	for i, status := range statuses {
		ids[i] = status.ID
	}
	return ids
}

func groupVersions(groups []*types.VersionGroup) []string {
	versions := make([]string, len(groups))
	for i, group := range groups {
		versions[i] = group.Version
	}
	return versions
}

func newTestMigrationAnalytics(roster IndexerListSource, volume DailyVolumeSource, prober VersionProber) *MigrationAnalytics {
	logger, _ := test.NewNullLogger()
	return NewMigrationAnalytics(roster, volume, prober, logger)
}

func TestActiveSince(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "same year",
			now:      time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2025, time.February, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "year rollover",
			now:      time.Date(2025, time.January, 10, 8, 30, 0, 0, time.UTC),
			expected: time.Date(2024, time.December, 10, 8, 30, 0, 0, time.UTC),
		},
		{
			name:     "day overflow normalizes",
			now:      time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
			expected: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected.Unix(), ActiveSince(tt.now))
		})
	}
}

func TestIsActiveIndexerBoundary(t *testing.T) {
	boundary := ActiveSince(testNow)

	tests := []struct {
		name        string
		allocations []*types.Allocation
		expected    bool
	}{
		{"exactly at boundary", []*types.Allocation{{CreatedAt: boundary}}, false},
		{"one second after boundary", []*types.Allocation{{CreatedAt: boundary + 1}}, true},
		{"before boundary", []*types.Allocation{{CreatedAt: boundary - 3600}}, false},
		{"no allocations", nil, false},
		{"any recent allocation", []*types.Allocation{{CreatedAt: boundary - 1}, {CreatedAt: boundary + 60}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indexer := &types.IndexerListEntry{ID: "0x01", Allocations: tt.allocations}
			assert.Equal(t, tt.expected, IsActiveIndexer(indexer, boundary))
		})
	}
}

func TestBuildReportEndToEnd(t *testing.T) {
	roster := &fakeRosterSource{roster: &types.IndexerList{
		Indexers: []*types.IndexerListEntry{
			activeIndexer("0xe1", "https://e1.example.com/", 100),
			activeIndexer("0xe2", "https://e2.example.com/", 50),
		},
		Provisions: []*types.Provision{
			provision("0xe1", 40),
		},
	}}
	prober := &fakeProber{versions: map[string]string{
		"0xe1": "1.7.0",
		"0xe2": "1.6.0",
	}}

	report, err := newTestMigrationAnalytics(roster, nil, prober).BuildReport(context.Background(), MigrationReportOptions{
		HorizonVersion: "1.7.0",
		Now:            testNow,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalIndexers)
	assert.Equal(t, 2, report.IndexersWithAllocations)
	assert.Equal(t, []string{"0xe1", "0xe2"}, statusIDs(report.Active))
	assert.Equal(t, []string{"0xe1"}, statusIDs(report.Migrated))
	assert.Equal(t, []string{"0xe2"}, statusIDs(report.PendingMigration))
	assert.Equal(t, []string{"0xe1"}, statusIDs(report.Horizon))
	assert.Equal(t, []string{"0xe2"}, statusIDs(report.PreHorizon))

	assert.Equal(t, "150", report.TotalStaked.String())
	assert.Equal(t, "40", report.TotalProvisioned.String())
	assert.Equal(t, "26.67%", report.StakeCoverage.String())

	require.Len(t, report.VersionGroups, 2)
	assert.Equal(t, []string{"1.7.0", "1.6.0"}, groupVersions(report.VersionGroups))
	assert.Equal(t, []string{"0xe1"}, statusIDs(report.VersionGroups[0].Indexers))
	assert.Equal(t, []string{"0xe2"}, statusIDs(report.VersionGroups[1].Indexers))
	assert.Equal(t, "40.00%", report.VersionGroups[0].StakeCoverage.String())
	assert.Equal(t, "0.00%", report.VersionGroups[1].StakeCoverage.String())

	assert.False(t, report.VolumeAvailable)
	assert.Equal(t, types.NotApplicable, report.QueryCoverage.String())
	assert.Equal(t, types.NotApplicable, report.VersionGroups[0].QueryShare.String())
	assert.Len(t, report.Warnings, 1)

	assert.Len(t, prober.targets, 2)
}

func TestBuildReportRosterFailure(t *testing.T) {
	roster := &fakeRosterSource{err: errors.New("subgraph unavailable")}

	report, err := newTestMigrationAnalytics(roster, nil, &fakeProber{}).BuildReport(context.Background(), MigrationReportOptions{Now: testNow})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "subgraph unavailable")
}

func TestBuildReportVolumeFailureDegrades(t *testing.T) {
	roster := &fakeRosterSource{roster: &types.IndexerList{
		Indexers: []*types.IndexerListEntry{activeIndexer("0xe1", "https://e1.example.com/", 100)},
	}}
	volume := &fakeVolumeSource{err: errors.New("qos subgraph timeout")}

	report, err := newTestMigrationAnalytics(roster, volume, &fakeProber{}).BuildReport(context.Background(), MigrationReportOptions{
		Now:          testNow,
		VolumeWindow: 48 * time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, testNow.Add(-48*time.Hour).Unix(), volume.since)
	assert.False(t, report.VolumeAvailable)
	assert.Equal(t, types.NotApplicable, report.QueryCoverage.String())
	assert.Nil(t, report.TotalQueries)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "qos subgraph timeout")
	assert.Equal(t, []string{"0xe1"}, statusIDs(report.Unreachable))
}

func TestComputeMigrationReportClassification(t *testing.T) {
	stale := &types.IndexerListEntry{
		ID:           "0xstale",
		Url:          "https://stale.example.com/",
		StakedTokens: big.NewInt(10),
		Allocations:  []*types.Allocation{{CreatedAt: testNow.AddDate(0, -2, 0).Unix()}},
	}
	idle := &types.IndexerListEntry{ID: "0xidle", StakedTokens: big.NewInt(5)}

	input := &MigrationInput{
		Now:            testNow,
		HorizonVersion: "1.7.0",
		Roster: &types.IndexerList{
			Indexers: []*types.IndexerListEntry{
				activeIndexer("0xAbC1", "https://a.example.com/", 100),
				activeIndexer("0xb2", "", 100),
				activeIndexer("0xc3", "https://c.example.com/", 100),
				stale,
				idle,
			},
			Provisions: []*types.Provision{
				provision("0xabc1", 10),
				provision("0xABC1", 20),
				provision("0xstale", 10),
			},
		},
		Probes: []*types.ProbeResult{
			{ID: "0xabc1", Reachability: types.ReachabilityReachable, Version: "1.10.0"},
			{ID: "0xc3", Reachability: types.ReachabilityUnreachable, Error: "status 502"},
		},
	}

	report := ComputeMigrationReport(input)

	assert.Equal(t, 5, report.TotalIndexers)
	assert.Equal(t, 4, report.IndexersWithAllocations)
	assert.Equal(t, []string{"0xAbC1", "0xb2", "0xc3"}, statusIDs(report.Active))
	assert.Equal(t, []string{"0xAbC1"}, statusIDs(report.Migrated), "provisions of inactive indexers do not count")
	assert.Equal(t, []string{"0xb2", "0xc3"}, statusIDs(report.PendingMigration))
	assert.Equal(t, []string{"0xb2"}, statusIDs(report.NoURL))
	assert.Equal(t, []string{"0xc3"}, statusIDs(report.Unreachable))
	assert.Equal(t, []string{"0xAbC1"}, statusIDs(report.Reachable))
	assert.Equal(t, []string{"0xAbC1"}, statusIDs(report.Horizon))
	assert.Empty(t, report.PreHorizon)

	assert.Equal(t, "30", report.Active[0].ProvisionedTokens.String())
	assert.Equal(t, "30.00%", report.Active[0].StakeCoverage.String())
	assert.Equal(t, "status 502", report.Active[2].ProbeError)

	assert.Equal(t, "315", report.TotalStaked.String())
	assert.Equal(t, "40", report.TotalProvisioned.String())
	assert.Equal(t, "12.70%", report.StakeCoverage.String())

	assert.Equal(t, []string{"1.10.0", types.NotApplicable}, groupVersions(report.VersionGroups))
	assert.Equal(t, []string{"0xb2", "0xc3"}, statusIDs(report.VersionGroups[1].Indexers))
}

func TestComputeMigrationReportZeroStake(t *testing.T) {
	report := ComputeMigrationReport(&MigrationInput{
		Now: testNow,
		Roster: &types.IndexerList{
			Indexers: []*types.IndexerListEntry{activeIndexer("0x01", "", 0)},
		},
	})

	assert.False(t, report.StakeCoverage.Valid)
	assert.Equal(t, types.NotApplicable, report.StakeCoverage.String())
	assert.Equal(t, types.NotApplicable, report.Active[0].StakeCoverage.String())
	assert.Equal(t, types.NotApplicable, report.VersionGroups[0].StakeCoverage.String())
}

func TestComputeMigrationReportEmptyRoster(t *testing.T) {
	report := ComputeMigrationReport(&MigrationInput{Now: testNow})

	assert.Equal(t, 0, report.TotalIndexers)
	assert.Empty(t, report.Active)
	assert.Empty(t, report.VersionGroups)
	assert.Equal(t, DefaultHorizonVersion, report.HorizonVersion)
	assert.Equal(t, types.NotApplicable, report.StakeCoverage.String())
}

func TestComputeMigrationReportVolume(t *testing.T) {
	day1 := testNow.Add(-48 * time.Hour).Truncate(24 * time.Hour).Unix()
	day2 := day1 + 86400

	input := &MigrationInput{
		Now:            testNow,
		HorizonVersion: "1.7.0",
		Roster: &types.IndexerList{
			Indexers: []*types.IndexerListEntry{
				activeIndexer("0x01", "https://a.example.com/", 100),
				activeIndexer("0x02", "https://b.example.com/", 100),
			},
		},
		Probes: []*types.ProbeResult{
			{ID: "0x01", Reachability: types.ReachabilityReachable, Version: "1.7.1"},
			{ID: "0x02", Reachability: types.ReachabilityReachable, Version: "1.6.0"},
		},
		VolumeAvailable: true,
		// arrival order is not sorted by day
		DailyData: []*types.DailyDataPoint{
			{IndexerID: "0x02", DayStart: day2, QueryCount: big.NewInt(100)},
			{IndexerID: "0x01", DayStart: day1, QueryCount: big.NewInt(300)},
			{IndexerID: "0x02", DayStart: day1, QueryCount: big.NewInt(100)},
			{IndexerID: "0x01", DayStart: day2, QueryCount: big.NewInt(100)},
			{IndexerID: "0x99", DayStart: day2, QueryCount: big.NewInt(200)},
		},
	}

	report := ComputeMigrationReport(input)
	require.True(t, report.VolumeAvailable)

	require.Len(t, report.DailyVolume, 2)
	assert.Equal(t, day1, report.DailyVolume[0].DayStart)
	assert.Equal(t, "400", report.DailyVolume[0].TotalQueries.String())
	assert.Equal(t, "300", report.DailyVolume[0].HorizonQueries.String())
	assert.Equal(t, "75.00%", report.DailyVolume[0].Coverage.String())
	assert.Equal(t, day2, report.DailyVolume[1].DayStart)
	assert.Equal(t, "400", report.DailyVolume[1].TotalQueries.String())
	assert.Equal(t, "25.00%", report.DailyVolume[1].Coverage.String())

	assert.Equal(t, "800", report.TotalQueries.String())
	assert.Equal(t, "400", report.HorizonQueries.String())
	assert.Equal(t, "50.00%", report.QueryCoverage.String())

	assert.Equal(t, "400", report.Active[0].QueryCount.String())
	assert.Equal(t, "50.00%", report.Active[0].QueryShare.String())
	assert.Equal(t, "25.00%", report.Active[1].QueryShare.String())

	assert.Equal(t, []string{"1.7.1", "1.6.0"}, groupVersions(report.VersionGroups))
	assert.Equal(t, "50.00%", report.VersionGroups[0].QueryShare.String())
	assert.Equal(t, "200", report.VersionGroups[1].QueryCount.String())
}

func TestComputeMigrationReportEmptyVolume(t *testing.T) {
	report := ComputeMigrationReport(&MigrationInput{
		Now:             testNow,
		Roster:          &types.IndexerList{Indexers: []*types.IndexerListEntry{activeIndexer("0x01", "", 1)}},
		VolumeAvailable: true,
	})

	assert.Empty(t, report.DailyVolume)
	assert.Equal(t, types.NotApplicable, report.QueryCoverage.String())
	assert.Equal(t, "0", report.TotalQueries.String())
	assert.Equal(t, types.NotApplicable, report.Active[0].QueryShare.String())
}

func TestComputeMigrationReportGrouping(t *testing.T) {
	indexers := []*types.IndexerListEntry{}
	probes := []*types.ProbeResult{}
	versions := map[string]string{
		"0x01": "1.9.0",
		"0x02": "",
		"0x03": "1.10.0",
		"0x04": "1.7.0",
		"0x05": "1.9.0",
		"0x06": "1.6.3",
	}
	for _, id := range []string{"0x01", "0x02", "0x03", "0x04", "0x05", "0x06"} {
		indexers = append(indexers, activeIndexer(id, "https://"+id+".example.com/", 10))
		if versions[id] == "" {
			probes = append(probes, &types.ProbeResult{ID: id, Reachability: types.ReachabilityUnreachable})
		} else {
			probes = append(probes, &types.ProbeResult{ID: id, Reachability: types.ReachabilityReachable, Version: versions[id]})
		}
	}

	tests := []struct {
		name             string
		migratedOnly     bool
		expectedVersions []string
	}{
		{
			name:             "all indexers",
			expectedVersions: []string{"1.10.0", "1.9.0", "1.7.0", "1.6.3", types.NotApplicable},
		},
		{
			name:             "migrated only",
			migratedOnly:     true,
			expectedVersions: []string{"1.10.0", "1.9.0", "1.7.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ComputeMigrationReport(&MigrationInput{
				Now:            testNow,
				HorizonVersion: "1.7.0",
				MigratedOnly:   tt.migratedOnly,
				Roster:         &types.IndexerList{Indexers: indexers},
				Probes:         probes,
			})

			assert.Equal(t, tt.expectedVersions, groupVersions(report.VersionGroups))
			assert.Len(t, report.Active, 6, "the display filter does not change the classification")
			assert.Equal(t, []string{"0x01", "0x05"}, statusIDs(report.VersionGroups[1].Indexers))
		})
	}
}

func TestComputeMigrationReportServedNotApplicableVersion(t *testing.T) {
	report := ComputeMigrationReport(&MigrationInput{
		Now:            testNow,
		HorizonVersion: "1.7.0",
		Roster: &types.IndexerList{Indexers: []*types.IndexerListEntry{
			activeIndexer("0x01", "https://0x01.example.com/", 10),
			activeIndexer("0x02", "https://0x02.example.com/", 10),
			activeIndexer("0x03", "https://0x03.example.com/", 10),
			activeIndexer("0x04", "https://0x04.example.com/", 10),
		}},
		Probes: []*types.ProbeResult{
			{ID: "0x01", Reachability: types.ReachabilityReachable, Version: types.NotApplicable},
			{ID: "0x02", Reachability: types.ReachabilityUnreachable},
			{ID: "0x03", Reachability: types.ReachabilityReachable, Version: "1.7.0"},
			{ID: "0x04", Reachability: types.ReachabilityReachable, Version: ""},
		},
	})

	require.Len(t, report.VersionGroups, 4)
	assert.Equal(t, []string{"1.7.0", types.NotApplicable, "", types.NotApplicable}, groupVersions(report.VersionGroups))
	assert.Equal(t, []bool{true, true, true, false}, []bool{
		report.VersionGroups[0].HasVersion,
		report.VersionGroups[1].HasVersion,
		report.VersionGroups[2].HasVersion,
		report.VersionGroups[3].HasVersion,
	})
	assert.Equal(t, []string{"0x01"}, statusIDs(report.VersionGroups[1].Indexers))
	assert.Equal(t, []string{"0x04"}, statusIDs(report.VersionGroups[2].Indexers))
	assert.Equal(t, []string{"0x02"}, statusIDs(report.VersionGroups[3].Indexers))
}
