package types

import (
	"math/big"
	"time"
)

// IndexerStatus is the migration view of one active indexer.
type IndexerStatus struct {
	ID                string       `json:"id"`
	Url               string       `json:"url"`
	Version           string       `json:"version,omitempty"`
	Reachability      Reachability `json:"reachability"`
	ProbeError        string       `json:"probeError,omitempty"`
	Migrated          bool         `json:"migrated"`
	StakedTokens      *big.Int     `json:"stakedTokens"`
	ProvisionedTokens *big.Int     `json:"provisionedTokens"`
	QueryCount        *big.Int     `json:"queryCount"`
	QueryShare        Percentage   `json:"queryShare"`
	StakeCoverage     Percentage   `json:"stakeCoverage"`
}

// HasVersion returns true if a live version was resolved.
func (s *IndexerStatus) HasVersion() bool {
	return s.Reachability == ReachabilityReachable
}

// VersionGroup holds all displayed indexers running the same version.
type VersionGroup struct {
	Version       string           `json:"version"`
	HasVersion    bool             `json:"hasVersion"`
	Indexers      []*IndexerStatus `json:"indexers"`
	QueryCount    *big.Int         `json:"queryCount"`
	QueryShare    Percentage       `json:"queryShare"`
	StakedTokens  *big.Int         `json:"stakedTokens"`
	Provisioned   *big.Int         `json:"provisionedTokens"`
	StakeCoverage Percentage       `json:"stakeCoverage"`
}

// DailyVolume is the query volume of one day bucket.
type DailyVolume struct {
	DayStart       int64      `json:"dayStart"`
	TotalQueries   *big.Int   `json:"totalQueries"`
	HorizonQueries *big.Int   `json:"horizonQueries"`
	Coverage       Percentage `json:"coverage"`
}

// MigrationReport is the result of the migration/coverage analytics.
type MigrationReport struct {
	GeneratedAt    time.Time `json:"generatedAt"`
	HorizonVersion string    `json:"horizonVersion"`

	TotalIndexers           int `json:"totalIndexers"`
	IndexersWithAllocations int `json:"indexersWithAllocations"`

	Active           []*IndexerStatus `json:"active"`
	Migrated         []*IndexerStatus `json:"migrated"`
	PendingMigration []*IndexerStatus `json:"pendingMigration"`

	NoURL       []*IndexerStatus `json:"noUrl"`
	Unreachable []*IndexerStatus `json:"unreachable"`
	Reachable   []*IndexerStatus `json:"reachable"`
	PreHorizon  []*IndexerStatus `json:"preHorizon"`
	Horizon     []*IndexerStatus `json:"horizon"`

	TotalStaked      *big.Int   `json:"totalStaked"`
	TotalProvisioned *big.Int   `json:"totalProvisioned"`
	StakeCoverage    Percentage `json:"stakeCoverage"`

	VolumeAvailable bool           `json:"volumeAvailable"`
	TotalQueries    *big.Int       `json:"totalQueries"`
	HorizonQueries  *big.Int       `json:"horizonQueries"`
	QueryCoverage   Percentage     `json:"queryCoverage"`
	DailyVolume     []*DailyVolume `json:"dailyVolume"`

	VersionGroups []*VersionGroup `json:"versionGroups"`

	Warnings []string `json:"warnings,omitempty"`
}
