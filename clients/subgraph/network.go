package subgraph

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

const (
	NetworkSourceName = "subgraph"
	DefaultPageSize   = 1000
)

type graphNetworkResponse struct {
	GraphNetworks []struct {
		MaxThawingPeriod   BigInt `json:"maxThawingPeriod"`
		DisputePeriod      BigInt `json:"disputePeriod"`
		FishermanRewardCut BigInt `json:"fishermanRewardCut"`
		MinDisputeDeposit  BigInt `json:"minimumDisputeDeposit"`
	} `json:"graphNetworks"`
}

type subgraphServiceResponse struct {
	DataServices []struct {
		MinimumProvisionTokens BigInt `json:"minimumProvisionTokens"`
		MaximumProvisionTokens BigInt `json:"maximumProvisionTokens"`
		MaximumVerifierCut     BigInt `json:"maximumVerifierCut"`
		MaxPOIStaleness        BigInt `json:"maxPOIStaleness"`
		DelegationRatio        BigInt `json:"delegationRatio"`
		StakeToFeesRatio       BigInt `json:"stakeToFeesRatio"`
		CurationCut            BigInt `json:"curationCut"`
	} `json:"dataServices"`
	GraphNetworks []struct {
		DisputePeriod      BigInt `json:"disputePeriod"`
		FishermanRewardCut BigInt `json:"fishermanRewardCut"`
	} `json:"graphNetworks"`
}

type indexerResponse struct {
	Indexers []struct {
		ID                 string  `json:"id"`
		Url                *string `json:"url"`
		GeoHash            *string `json:"geoHash"`
		RewardsDestination *string `json:"rewardsDestination"`
		StakedTokens       BigInt  `json:"stakedTokens"`
		DelegatedTokens    BigInt  `json:"delegatedTokens"`
		ProvisionedTokens  BigInt  `json:"provisionedTokens"`
		AllocatedTokens    BigInt  `json:"allocatedTokens"`
		LockedTokens       BigInt  `json:"lockedTokens"`
		TokenCapacity      BigInt  `json:"tokenCapacity"`
	} `json:"indexers"`
	Provisions []provisionResponse `json:"provisions"`
}

type provisionResponse struct {
	Indexer           entityRef `json:"indexer"`
	TokensProvisioned BigInt    `json:"tokensProvisioned"`
	TokensAllocated   BigInt    `json:"tokensAllocated"`
	TokensThawing     BigInt    `json:"tokensThawing"`
}

type indexerListResponse struct {
	Indexers []struct {
		ID           string  `json:"id"`
		Url          *string `json:"url"`
		StakedTokens BigInt  `json:"stakedTokens"`
		Allocations  []struct {
			CreatedAt BigInt `json:"createdAt"`
		} `json:"allocations"`
	} `json:"indexers"`
	Provisions []provisionResponse `json:"provisions"`
}

type escrowAccountResponse struct {
	PaymentsEscrowAccounts []struct {
		Balance            BigInt `json:"balance"`
		TotalAmountThawing BigInt `json:"totalAmountThawing"`
		ThawEndTimestamp   BigInt `json:"thawEndTimestamp"`
	} `json:"paymentsEscrowAccounts"`
}

// NetworkSubgraph reads horizon protocol facts from the graph network subgraph.
type NetworkSubgraph struct {
	client          *Client
	subgraphService string
	pageSize        int
	logger          logrus.FieldLogger
}

// NewNetworkSubgraph creates a network subgraph source. subgraphService is the data service address
// used to scope provisions, pageSize bounds the page length of list queries.
func NewNetworkSubgraph(client *Client, subgraphService string, pageSize int, logger logrus.FieldLogger) *NetworkSubgraph {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &NetworkSubgraph{
		client:          client,
		subgraphService: utils.CanonicalAddress(subgraphService),
		pageSize:        pageSize,
		logger:          logger,
	}
}

func (s *NetworkSubgraph) notFound(query string, variables map[string]interface{}, entity string) error {
	return &QueryError{
		Source:    s.client.GetName(),
		Query:     query,
		Variables: variables,
		Message:   fmt.Sprintf("%v not found", entity),
	}
}

// GetGraphNetwork returns the global horizon staking parameters.
func (s *NetworkSubgraph) GetGraphNetwork(ctx context.Context) (*types.GraphNetwork, error) {
	response := &graphNetworkResponse{}
	if err := s.client.Query(ctx, "GraphNetwork", nil, response); err != nil {
		return nil, err
	}
	if len(response.GraphNetworks) == 0 {
		return nil, s.notFound("GraphNetwork", nil, "graph network")
	}

	return &types.GraphNetwork{
		MaxThawingPeriod: response.GraphNetworks[0].MaxThawingPeriod.Big(),
	}, nil
}

// GetSubgraphService returns the subgraph service parameters.
// The verifier cut lower bound and the thawing period range are enforced through the dispute manager,
// so they are taken from the graph network entity.
func (s *NetworkSubgraph) GetSubgraphService(ctx context.Context) (*types.SubgraphServiceParams, error) {
	variables := map[string]interface{}{
		"dataService": s.subgraphService,
	}
	response := &subgraphServiceResponse{}
	if err := s.client.Query(ctx, "SubgraphService", variables, response); err != nil {
		return nil, err
	}
	if len(response.DataServices) == 0 || len(response.GraphNetworks) == 0 {
		return nil, s.notFound("SubgraphService", variables, "subgraph service")
	}

	dataService := response.DataServices[0]
	network := response.GraphNetworks[0]
	return &types.SubgraphServiceParams{
		MinimumProvisionTokens: dataService.MinimumProvisionTokens.Big(),
		MaximumProvisionTokens: dataService.MaximumProvisionTokens.Big(),
		MinimumVerifierCut:     network.FishermanRewardCut.Big(),
		MaximumVerifierCut:     dataService.MaximumVerifierCut.Big(),
		MinimumThawingPeriod:   network.DisputePeriod.Big(),
		MaximumThawingPeriod:   network.DisputePeriod.Big(),
		MaxPOIStaleness:        dataService.MaxPOIStaleness.Big(),
		DelegationRatio:        dataService.DelegationRatio.Big(),
		StakeToFeesRatio:       dataService.StakeToFeesRatio.Big(),
		CurationCut:            dataService.CurationCut.Big(),
	}, nil
}

// GetDisputeManager returns the dispute manager parameters.
func (s *NetworkSubgraph) GetDisputeManager(ctx context.Context) (*types.DisputeManagerParams, error) {
	response := &graphNetworkResponse{}
	if err := s.client.Query(ctx, "DisputeManager", nil, response); err != nil {
		return nil, err
	}
	if len(response.GraphNetworks) == 0 {
		return nil, s.notFound("DisputeManager", nil, "dispute manager")
	}

	network := response.GraphNetworks[0]
	return &types.DisputeManagerParams{
		DisputePeriod:      network.DisputePeriod.Big(),
		FishermanRewardCut: network.FishermanRewardCut.Big(),
		DisputeDeposit:     network.MinDisputeDeposit.Big(),
	}, nil
}

// GetIndexer returns the stake facts of a single indexer.
// Values the subgraph does not index (delegated thawing tokens, fees provision) are reported as zero,
// legacy allocations and idle stake are derived from the indexer and provision totals.
func (s *NetworkSubgraph) GetIndexer(ctx context.Context, address string) (*types.IndexerFacts, error) {
	variables := map[string]interface{}{
		"id":          utils.CanonicalAddress(address),
		"dataService": s.subgraphService,
	}
	response := &indexerResponse{}
	if err := s.client.Query(ctx, "Indexer", variables, response); err != nil {
		return nil, err
	}
	if len(response.Indexers) == 0 {
		return nil, s.notFound("Indexer", variables, "indexer")
	}

	indexer := response.Indexers[0]
	provisionTokens := new(big.Int)
	provisionAllocated := new(big.Int)
	provisionThawing := new(big.Int)
	if len(response.Provisions) > 0 {
		provisionTokens = response.Provisions[0].TokensProvisioned.Big()
		provisionAllocated = response.Provisions[0].TokensAllocated.Big()
		provisionThawing = response.Provisions[0].TokensThawing.Big()
	}

	stakedTokens := indexer.StakedTokens.Big()
	lockedTokens := indexer.LockedTokens.Big()
	totalProvisioned := indexer.ProvisionedTokens.Big()
	legacyAllocated := new(big.Int).Sub(indexer.AllocatedTokens.Big(), provisionAllocated)

	idleTokens := new(big.Int).Set(stakedTokens)
	idleTokens.Sub(idleTokens, legacyAllocated)
	idleTokens.Sub(idleTokens, lockedTokens)
	idleTokens.Sub(idleTokens, totalProvisioned)

	return &types.IndexerFacts{
		ID:                     utils.CanonicalAddress(indexer.ID),
		Url:                    stringValue(indexer.Url),
		GeoHash:                stringValue(indexer.GeoHash),
		RewardsDestination:     utils.CanonicalAddress(stringValue(indexer.RewardsDestination)),
		StakedTokens:           stakedTokens,
		DelegatedTokens:        indexer.DelegatedTokens.Big(),
		DelegatedThawingTokens: new(big.Int),
		TotalProvisionedTokens: totalProvisioned,
		LegacyTokensAllocated:  legacyAllocated,
		TokensLocked:           lockedTokens,
		IdleTokens:             idleTokens,
		AvailableTokens:        indexer.TokenCapacity.Big(),
		ProvisionedTokens:      provisionTokens,
		AllocatedTokens:        provisionAllocated,
		FeesProvisionedTokens:  new(big.Int),
		ThawingTokens:          provisionThawing,
	}, nil
}

// GetIndexerList returns all staked indexers with their most recent allocation and all provisions.
// Both lists are paginated until a short page is returned.
func (s *NetworkSubgraph) GetIndexerList(ctx context.Context) (*types.IndexerList, error) {
	list := &types.IndexerList{
		Indexers:   []*types.IndexerListEntry{},
		Provisions: []*types.Provision{},
	}

	indexersDone := false
	provisionsDone := false
	for skip := 0; !indexersDone || !provisionsDone; skip += s.pageSize {
		response := &indexerListResponse{}
		err := s.client.Query(ctx, "IndexerList", map[string]interface{}{
			"first": s.pageSize,
			"skip":  skip,
		}, response)
		if err != nil {
			return nil, err
		}

		if !indexersDone {
			for _, indexer := range response.Indexers {
				entry := &types.IndexerListEntry{
					ID:           utils.CanonicalAddress(indexer.ID),
					Url:          stringValue(indexer.Url),
					StakedTokens: indexer.StakedTokens.Big(),
					Allocations:  make([]*types.Allocation, len(indexer.Allocations)),
				}
				for i, allocation := range indexer.Allocations {
					entry.Allocations[i] = &types.Allocation{CreatedAt: allocation.CreatedAt.Int64()}
				}
				list.Indexers = append(list.Indexers, entry)
			}
			indexersDone = len(response.Indexers) < s.pageSize
		}

		if !provisionsDone {
			for _, provision := range response.Provisions {
				list.Provisions = append(list.Provisions, &types.Provision{
					IndexerID:         utils.CanonicalAddress(provision.Indexer.ID),
					TokensProvisioned: provision.TokensProvisioned.Big(),
					TokensAllocated:   provision.TokensAllocated.Big(),
					TokensThawing:     provision.TokensThawing.Big(),
				})
			}
			provisionsDone = len(response.Provisions) < s.pageSize
		}
	}

	s.logger.WithFields(logrus.Fields{
		"indexers":   len(list.Indexers),
		"provisions": len(list.Provisions),
	}).Debugf("loaded indexer list")

	return list, nil
}

// GetEscrowAccount returns the payments escrow account of a payer, collector and receiver.
// Returns nil without error if no such account exists.
func (s *NetworkSubgraph) GetEscrowAccount(ctx context.Context, payer, collector, receiver string) (*types.EscrowAccount, error) {
	account := &types.EscrowAccount{
		Payer:     utils.CanonicalAddress(payer),
		Collector: utils.CanonicalAddress(collector),
		Receiver:  utils.CanonicalAddress(receiver),
	}

	response := &escrowAccountResponse{}
	err := s.client.Query(ctx, "EscrowAccount", map[string]interface{}{
		"payer":     account.Payer,
		"collector": account.Collector,
		"receiver":  account.Receiver,
	}, response)
	if err != nil {
		return nil, err
	}
	if len(response.PaymentsEscrowAccounts) == 0 {
		return nil, nil
	}

	escrow := response.PaymentsEscrowAccounts[0]
	account.Balance = escrow.Balance.Big()
	account.TokensThawing = escrow.TotalAmountThawing.Big()
	account.ThawEndTimestamp = escrow.ThawEndTimestamp.Big()
	return account, nil
}

func stringValue(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}
