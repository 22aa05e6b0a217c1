package main

import (
	"github.com/spf13/cobra"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

var protocolCmd = &cobra.Command{
	Use:   "protocol",
	Short: "Show protocol parameters with RPC/subgraph validation",
	Long:  "Fetch the Graph Network, Subgraph Service and Dispute Manager parameters from the contracts and cross check them against the network subgraph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		networkService, closeFn, err := newNetworkService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		graphNetwork, err := networkService.GetGraphNetwork(ctx)
		if err != nil {
			return err
		}
		subgraphService, err := networkService.GetSubgraphService(ctx)
		if err != nil {
			return err
		}
		disputeManager, err := networkService.GetDisputeManager(ctx)
		if err != nil {
			return err
		}

		display := NewDisplay(cmd.OutOrStdout())
		display.Header("Graph Horizon - Protocol Parameters")
		printGraphNetwork(display, graphNetwork.Data)
		printSubgraphService(display, subgraphService.Data)
		printDisputeManager(display, disputeManager.Data)

		mismatches := []types.Mismatch{}
		mismatches = append(mismatches, prefixMismatches("graphNetwork", graphNetwork.Mismatches)...)
		mismatches = append(mismatches, prefixMismatches("subgraphService", subgraphService.Mismatches)...)
		mismatches = append(mismatches, prefixMismatches("disputeManager", disputeManager.Mismatches)...)
		display.Mismatches(mismatches)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(protocolCmd)
}

func printGraphNetwork(display *Display, params *types.GraphNetwork) {
	display.Section("Horizon Staking")
	display.KeyValue("Max thawing period", utils.FormatDuration(params.MaxThawingPeriod))
}

func printSubgraphService(display *Display, params *types.SubgraphServiceParams) {
	display.Section("Subgraph Service")
	display.KeyValue("Provision tokens", utils.FormatRange(params.MinimumProvisionTokens, params.MaximumProvisionTokens, true))
	display.KeyValue("Verifier cut", utils.FormatPPMRange(params.MinimumVerifierCut, params.MaximumVerifierCut))
	display.KeyValue("Thawing period", utils.FormatDurationRange(params.MinimumThawingPeriod, params.MaximumThawingPeriod))
	display.KeyValue("Max POI staleness", utils.FormatDuration(params.MaxPOIStaleness))
	display.KeyValue("Delegation ratio", utils.FormatBigNumber(params.DelegationRatio, false))
	display.KeyValue("Stake to fees ratio", utils.FormatBigNumber(params.StakeToFeesRatio, false))
	display.KeyValue("Curation cut", utils.FormatPPM(params.CurationCut))
}

func printDisputeManager(display *Display, params *types.DisputeManagerParams) {
	display.Section("Dispute Manager")
	display.KeyValue("Dispute period", utils.FormatDuration(params.DisputePeriod))
	display.KeyValue("Fisherman reward cut", utils.FormatPPM(params.FishermanRewardCut))
	display.KeyValue("Dispute deposit", utils.FormatBigNumber(params.DisputeDeposit, true))
}

func prefixMismatches(prefix string, mismatches []types.Mismatch) []types.Mismatch {
	prefixed := make([]types.Mismatch, len(mismatches))
	for i, mismatch := range mismatches {
		mismatch.Key = prefix + "." + mismatch.Key
		prefixed[i] = mismatch
	}
	return prefixed
}
