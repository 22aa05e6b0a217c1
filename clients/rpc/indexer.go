package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

// storage slot of the legacy service provider mapping in HorizonStaking
const legacyServiceProviderSlot = 14

// delegation ratio passed to getTokensAvailable
const tokensAvailableDelegationRatio uint32 = 16

var legacySlotArguments = func() abi.Arguments {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{{Type: addressType}, {Type: uint256Type}}
}()

// LegacyStakeSlots returns the storage slots holding the pre-horizon allocated and locked tokens of an indexer.
// The mapping entry lives at keccak256(abi.encode(indexer, 14)), allocated tokens at +1 and locked tokens at +2.
func LegacyStakeSlots(indexer common.Address) (allocated common.Hash, locked common.Hash, err error) {
	encoded, err := legacySlotArguments.Pack(indexer, big.NewInt(legacyServiceProviderSlot))
	if err != nil {
		return common.Hash{}, common.Hash{}, err
	}

	base := crypto.Keccak256Hash(encoded)
	return common.Hash(utils.SlotOffset(base, 1)), common.Hash(utils.SlotOffset(base, 2)), nil
}

// GetIndexer reads the stake and registration facts of a single indexer.
func (c *NetworkRPC) GetIndexer(ctx context.Context, address string) (*types.IndexerFacts, error) {
	if !common.IsHexAddress(address) {
		return nil, &types.SourceError{
			Source: SourceName,
			Method: "getIndexer",
			Err:    fmt.Errorf("invalid indexer address: %v", address),
		}
	}

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	indexer := common.HexToAddress(address)
	verifier := c.contracts.SubgraphService

	var registration []interface{}
	var paymentsDestination []interface{}
	var serviceProvider, delegationPool, provision []*big.Int
	var allocationTracker, feesTracker, idleStake, tokensAvailable []*big.Int
	var legacyAllocated, legacyLocked *big.Int

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(target *[]*big.Int, call *contractCall) {
		g.Go(func() error {
			values, err := c.callBigInts(gctx, call)
			if err != nil {
				return err
			}
			*target = values
			return nil
		})
	}

	g.Go(func() error {
		var err error
		registration, err = c.call(gctx, c.subgraphService("indexers", indexer))
		return err
	})
	g.Go(func() error {
		var err error
		paymentsDestination, err = c.call(gctx, c.subgraphService("paymentsDestination", indexer))
		return err
	})
	fetch(&serviceProvider, c.horizonStaking("getServiceProvider", indexer))
	fetch(&delegationPool, c.horizonStaking("getDelegationPool", indexer, verifier))
	fetch(&provision, c.horizonStaking("getProvision", indexer, verifier))
	fetch(&allocationTracker, c.subgraphService("allocationProvisionTracker", indexer))
	fetch(&feesTracker, c.subgraphService("feesProvisionTracker", indexer))
	fetch(&idleStake, c.horizonStaking("getIdleStake", indexer))
	fetch(&tokensAvailable, c.horizonStaking("getTokensAvailable", indexer, verifier, tokensAvailableDelegationRatio))
	g.Go(func() error {
		var err error
		legacyAllocated, legacyLocked, err = c.getLegacyStake(gctx, indexer)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	url, _ := registration[0].(string)
	geoHash, _ := registration[1].(string)
	destination, _ := paymentsDestination[0].(common.Address)

	return &types.IndexerFacts{
		ID:                     utils.CanonicalAddress(indexer.Hex()),
		Url:                    url,
		GeoHash:                geoHash,
		RewardsDestination:     utils.CanonicalAddress(destination.Hex()),
		StakedTokens:           serviceProvider[0],
		DelegatedTokens:        delegationPool[0],
		DelegatedThawingTokens: delegationPool[2],
		TotalProvisionedTokens: serviceProvider[1],
		LegacyTokensAllocated:  legacyAllocated,
		TokensLocked:           legacyLocked,
		IdleTokens:             idleStake[0],
		AvailableTokens:        tokensAvailable[0],
		ProvisionedTokens:      provision[0],
		AllocatedTokens:        allocationTracker[0],
		FeesProvisionedTokens:  feesTracker[0],
		ThawingTokens:          provision[1],
	}, nil
}

// getLegacyStake reads the pre-horizon allocated and locked tokens from raw HorizonStaking storage.
func (c *NetworkRPC) getLegacyStake(ctx context.Context, indexer common.Address) (*big.Int, *big.Int, error) {
	sourceError := func(err error) error {
		return &types.SourceError{
			Source:   SourceName,
			Method:   "getLegacyStake",
			Contract: ContractHorizonStaking,
			Err:      err,
		}
	}

	if c.contracts.HorizonStaking == (common.Address{}) {
		return nil, nil, sourceError(fmt.Errorf("contract address not configured"))
	}

	allocatedSlot, lockedSlot, err := LegacyStakeSlots(indexer)
	if err != nil {
		return nil, nil, sourceError(err)
	}

	var allocated, locked []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		allocated, err = c.backend.StorageAt(gctx, c.contracts.HorizonStaking, allocatedSlot, nil)
		return err
	})
	g.Go(func() error {
		var err error
		locked, err = c.backend.StorageAt(gctx, c.contracts.HorizonStaking, lockedSlot, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, sourceError(err)
	}

	return new(big.Int).SetBytes(allocated), new(big.Int).SetBytes(locked), nil
}
