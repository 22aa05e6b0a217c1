package rpc

import (
	"context"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/horizon-monitor/types"
)

// GetGraphNetwork reads the global horizon staking parameters.
func (c *NetworkRPC) GetGraphNetwork(ctx context.Context) (*types.GraphNetwork, error) {
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	values, err := c.callBigInts(ctx, c.horizonStaking("getMaxThawingPeriod"))
	if err != nil {
		return nil, err
	}

	return &types.GraphNetwork{
		MaxThawingPeriod: values[0],
	}, nil
}

// GetSubgraphService reads the subgraph service data service parameters.
func (c *NetworkRPC) GetSubgraphService(ctx context.Context) (*types.SubgraphServiceParams, error) {
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	var provisionTokensRange, thawingPeriodRange, verifierCutRange []*big.Int
	var delegationRatio, curationCut, maxPOIStaleness, stakeToFeesRatio []*big.Int

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

	fetch(&provisionTokensRange, c.subgraphService("getProvisionTokensRange"))
	fetch(&thawingPeriodRange, c.subgraphService("getThawingPeriodRange"))
	fetch(&verifierCutRange, c.subgraphService("getVerifierCutRange"))
	fetch(&delegationRatio, c.subgraphService("getDelegationRatio"))
	fetch(&curationCut, c.subgraphService("curationFeesCut"))
	fetch(&maxPOIStaleness, c.subgraphService("maxPOIStaleness"))
	fetch(&stakeToFeesRatio, c.subgraphService("stakeToFeesRatio"))

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &types.SubgraphServiceParams{
		MinimumProvisionTokens: provisionTokensRange[0],
		MaximumProvisionTokens: provisionTokensRange[1],
		MinimumVerifierCut:     verifierCutRange[0],
		MaximumVerifierCut:     verifierCutRange[1],
		MinimumThawingPeriod:   thawingPeriodRange[0],
		MaximumThawingPeriod:   thawingPeriodRange[1],
		MaxPOIStaleness:        maxPOIStaleness[0],
		DelegationRatio:        delegationRatio[0],
		StakeToFeesRatio:       stakeToFeesRatio[0],
		CurationCut:            curationCut[0],
	}, nil
}

// GetDisputeManager reads the dispute manager parameters.
func (c *NetworkRPC) GetDisputeManager(ctx context.Context) (*types.DisputeManagerParams, error) {
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	var disputePeriod, fishermanRewardCut, disputeDeposit []*big.Int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		disputePeriod, err = c.callBigInts(gctx, c.disputeManager("disputePeriod"))
		return err
	})
	g.Go(func() error {
		var err error
		fishermanRewardCut, err = c.callBigInts(gctx, c.disputeManager("fishermanRewardCut"))
		return err
	})
	g.Go(func() error {
		var err error
		disputeDeposit, err = c.callBigInts(gctx, c.disputeManager("disputeDeposit"))
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &types.DisputeManagerParams{
		DisputePeriod:      disputePeriod[0],
		FishermanRewardCut: fishermanRewardCut[0],
		DisputeDeposit:     disputeDeposit[0],
	}, nil
}
