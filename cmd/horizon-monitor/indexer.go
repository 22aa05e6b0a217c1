package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

var indexerCmd = &cobra.Command{
	Use:   "indexer <address>",
	Short: "Show indexer stake details with RPC/subgraph validation",
	Long:  "Fetch the stake, provision and registration details of an indexer from the contracts, cross check them against the network subgraph and probe the live indexer version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		address := utils.CanonicalAddress(args[0])
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid indexer address: %v", args[0])
		}

		networkService, closeFn, err := newNetworkService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		indexerResult, err := networkService.GetIndexer(ctx, address)
		if err != nil {
			return err
		}
		indexer := indexerResult.Data

		display := NewDisplay(cmd.OutOrStdout())
		display.Header("Graph Horizon - Indexer")

		display.Section("Indexer Details")
		display.KeyValue("Address", indexer.ID)
		printIndexerVersion(cmd, display, indexer.Url)

		printIndexerStake(display, indexer)

		display.Section("Subgraph Service - Registration Details")
		display.KeyValue("URL", indexer.Url)
		display.KeyValue("Geo hash", indexer.GeoHash)
		display.KeyValue("Rewards destination", indexer.RewardsDestination)

		err = printEscrowAccount(cmd, display, indexer.ID)
		if err != nil {
			return err
		}

		display.Mismatches(indexerResult.Mismatches)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexerCmd)
}

func printIndexerVersion(cmd *cobra.Command, display *Display, url string) {
	result := newFleetProber().ProbeVersion(cmd.Context(), url)
	switch result.Reachability {
	case types.ReachabilityReachable:
		display.KeyValue("Version", result.Version)
	case types.ReachabilityNoURL:
		display.KeyValue("Version", types.NotApplicable+" (no url)")
	default:
		display.KeyValue("Version", types.NotApplicable+" (unreachable)")
		logger.WithField("url", url).Debugf("version probe failed: %v", result.Error)
	}
}

func printIndexerStake(display *Display, indexer *types.IndexerFacts) {
	display.Section("Stake Details")
	display.TotalTokens("Staked tokens", indexer.StakedTokens)
	display.Tokens("• Legacy tokens locked", indexer.TokensLocked)
	display.Tokens("• Legacy tokens allocated", indexer.LegacyTokensAllocated)
	display.Tokens("• Idle tokens", indexer.IdleTokens)
	display.Tokens("• Provisioned tokens", indexer.ProvisionedTokens)

	display.Section("Subgraph Service - Provisioned stake")
	display.TotalTokens("Total tokens", new(big.Int).Add(indexer.ProvisionedTokens, indexer.DelegatedTokens))
	display.Tokens("• Provisioned tokens", indexer.ProvisionedTokens)
	display.Tokens("• Delegated tokens", indexer.DelegatedTokens)
	display.Tokens("• Available tokens", indexer.AvailableTokens)
	display.Tokens("• Thawing tokens", indexer.ThawingTokens)
	display.Tokens("• Delegated thawing tokens", indexer.DelegatedThawingTokens)

	display.Section("Subgraph Service - Available stake utilization")
	display.TotalTokens("Allocation tracker", indexer.AvailableTokens)
	display.Tokens("• Tokens free", utils.SubClamped(indexer.AvailableTokens, indexer.AllocatedTokens))
	display.Tokens("• Allocated tokens", indexer.AllocatedTokens)
	display.TotalTokens("Query fee tracker", indexer.AvailableTokens)
	display.Tokens("• Tokens free", utils.SubClamped(indexer.AvailableTokens, indexer.FeesProvisionedTokens))
	display.Tokens("• Stake claims tokens", indexer.FeesProvisionedTokens)
}

// printEscrowAccount shows the gateway escrow funding the indexer, skipped if payer or collector are not configured.
func printEscrowAccount(cmd *cobra.Command, display *Display, indexerID string) error {
	cfg := utils.Config
	if cfg.Network.GatewayPayer == "" || cfg.Contracts.GraphTallyCollector == "" {
		return nil
	}

	subgraphSource, err := newNetworkSubgraph()
	if err != nil {
		return err
	}

	display.Section("Payments Escrow")
	display.KeyValue("Payer", cfg.Network.GatewayPayer)

	escrow, err := subgraphSource.GetEscrowAccount(cmd.Context(), cfg.Network.GatewayPayer, cfg.Contracts.GraphTallyCollector, indexerID)
	if err != nil {
		return err
	}
	if escrow == nil {
		display.KeyValue("Balance", "no escrow account")
		return nil
	}

	display.TotalTokens("Balance", escrow.Balance)
	display.Tokens("• Thawing tokens", escrow.TokensThawing)
	if thawEnd := utils.BigOrZero(escrow.ThawEndTimestamp); thawEnd.Sign() > 0 && thawEnd.IsInt64() {
		display.KeyValue("• Thaw end", time.Unix(thawEnd.Int64(), 0).UTC().Format(time.RFC3339))
	}
	return nil
}
