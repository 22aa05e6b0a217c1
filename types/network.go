package types

import "math/big"

// GraphNetwork holds the global horizon staking parameters.
type GraphNetwork struct {
	MaxThawingPeriod *big.Int `json:"maxThawingPeriod" validate:"required,uint256"`
}

// SubgraphServiceParams holds the subgraph service data service parameters.
// Ranges are inclusive [minimum, maximum].
type SubgraphServiceParams struct {
	MinimumProvisionTokens *big.Int `json:"minimumProvisionTokens" validate:"required,uint256"`
	MaximumProvisionTokens *big.Int `json:"maximumProvisionTokens" validate:"required,uint256"`
	MinimumVerifierCut     *big.Int `json:"minimumVerifierCut" validate:"required,uint256"`
	MaximumVerifierCut     *big.Int `json:"maximumVerifierCut" validate:"required,uint256"`
	MinimumThawingPeriod   *big.Int `json:"minimumThawingPeriod" validate:"required,uint256"`
	MaximumThawingPeriod   *big.Int `json:"maximumThawingPeriod" validate:"required,uint256"`
	MaxPOIStaleness        *big.Int `json:"maxPOIStaleness" validate:"required,uint256"`
	DelegationRatio        *big.Int `json:"delegationRatio" validate:"required,uint256"`
	StakeToFeesRatio       *big.Int `json:"stakeToFeesRatio" validate:"required,uint256"`
	CurationCut            *big.Int `json:"curationCut" validate:"required,uint256"`
}

// DisputeManagerParams holds the dispute manager parameters.
type DisputeManagerParams struct {
	DisputePeriod      *big.Int `json:"disputePeriod" validate:"required,uint256"`
	FishermanRewardCut *big.Int `json:"fishermanRewardCut" validate:"required,uint256"`
	DisputeDeposit     *big.Int `json:"disputeDeposit" validate:"required,uint256"`
}

// IndexerFacts is the reconciled view of a single indexer. Both sources map
// their native representation into this shape before comparison.
type IndexerFacts struct {
	ID                 string `json:"id" validate:"required,eth_addr"`
	Url                string `json:"url"`
	GeoHash            string `json:"geoHash"`
	RewardsDestination string `json:"rewardsDestination" validate:"omitempty,eth_addr"`

	StakedTokens           *big.Int `json:"stakedTokens" validate:"required,uint256"`
	DelegatedTokens        *big.Int `json:"delegatedTokens" validate:"required,uint256"`
	DelegatedThawingTokens *big.Int `json:"delegatedThawingTokens" validate:"required,uint256"`
	TotalProvisionedTokens *big.Int `json:"totalProvisionedTokens" validate:"required,uint256"`
	LegacyTokensAllocated  *big.Int `json:"legacyTokensAllocated" validate:"required,uint256"`
	TokensLocked           *big.Int `json:"tokensLocked" validate:"required,uint256"`
	IdleTokens             *big.Int `json:"idleTokens" validate:"required,uint256"`
	AvailableTokens        *big.Int `json:"availableTokens" validate:"required,uint256"`
	ProvisionedTokens      *big.Int `json:"provisionedTokens" validate:"required,uint256"`
	AllocatedTokens        *big.Int `json:"allocatedTokens" validate:"required,uint256"`
	FeesProvisionedTokens  *big.Int `json:"feesProvisionedTokens" validate:"required,uint256"`
	ThawingTokens          *big.Int `json:"thawingTokens" validate:"required,uint256"`
}

// EscrowAccount is the payments escrow account of a (payer, collector, receiver) tuple.
// Only the subgraph indexes it.
type EscrowAccount struct {
	Payer            string   `json:"payer"`
	Collector        string   `json:"collector"`
	Receiver         string   `json:"receiver"`
	Balance          *big.Int `json:"balance"`
	TokensThawing    *big.Int `json:"tokensThawing"`
	ThawEndTimestamp *big.Int `json:"thawEndTimestamp"`
}

// Allocation is an indexer allocation, only used for recency checks.
type Allocation struct {
	CreatedAt int64 `json:"createdAt"`
}

// IndexerListEntry is a roster entry as returned by the network subgraph.
type IndexerListEntry struct {
	ID           string        `json:"id"`
	Url          string        `json:"url"`
	StakedTokens *big.Int      `json:"stakedTokens"`
	Allocations  []*Allocation `json:"allocations"`
}

// Provision is a stake commitment of an indexer towards the subgraph service.
type Provision struct {
	IndexerID         string   `json:"indexerId"`
	TokensProvisioned *big.Int `json:"tokensProvisioned"`
	TokensAllocated   *big.Int `json:"tokensAllocated"`
	TokensThawing     *big.Int `json:"tokensThawing"`
}

// IndexerList is the full roster snapshot used by the migration analytics.
type IndexerList struct {
	Indexers   []*IndexerListEntry `json:"indexers"`
	Provisions []*Provision        `json:"provisions"`
}

// DailyDataPoint is the query volume served by one indexer on one day.
type DailyDataPoint struct {
	IndexerID  string   `json:"indexerId"`
	DayStart   int64    `json:"dayStart"`
	QueryCount *big.Int `json:"queryCount"`
}
