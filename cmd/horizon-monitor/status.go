package main

import (
	"github.com/spf13/cobra"

	"github.com/ethpandaops/horizon-monitor/utils"
)

const notConfigured = "not configured"

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the configured endpoints and check the rpc connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := utils.Config
		display := NewDisplay(cmd.OutOrStdout())

		display.Header("Network Status")
		display.KeyValue("Version", utils.GetBuildVersion())

		display.Section("Endpoints")
		if cfg.Network.RpcUrl == "" {
			display.KeyValue("RPC", notConfigured)
		} else {
			display.KeyValue("RPC", utils.GetRedactedURL(cfg.Network.RpcUrl))

			rpcSource, err := newRPCSource(cmd.Context())
			if err != nil {
				display.KeyValue("Chain ID", err.Error())
			} else {
				defer rpcSource.Close()

				chainID, err := rpcSource.GetChainID(cmd.Context())
				if err != nil {
					display.KeyValue("Chain ID", err.Error())
				} else {
					display.KeyValue("Chain ID", chainID.String())
				}
			}
		}

		for _, endpoint := range []struct {
			name string
			url  string
		}{
			{"Subgraph", cfg.Network.SubgraphUrl},
			{"QoS subgraph", cfg.Network.QosSubgraphUrl},
		} {
			if endpoint.url == "" {
				display.KeyValue(endpoint.name, notConfigured)
				continue
			}

			client, err := newSubgraphClient(endpoint.name, endpoint.url)
			if err != nil {
				return err
			}
			display.KeyValue(endpoint.name, client.GetEndpoint())
		}

		display.Section("Contracts")
		for _, contract := range []struct {
			name    string
			address string
		}{
			{"HorizonStaking", cfg.Contracts.HorizonStaking},
			{"SubgraphService", cfg.Contracts.SubgraphService},
			{"DisputeManager", cfg.Contracts.DisputeManager},
			{"GraphTallyCollector", cfg.Contracts.GraphTallyCollector},
		} {
			if contract.address == "" {
				display.KeyValue(contract.name, notConfigured)
			} else {
				display.KeyValue(contract.name, contract.address)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
