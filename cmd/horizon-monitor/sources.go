package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/horizon-monitor/clients/rpc"
	"github.com/ethpandaops/horizon-monitor/clients/subgraph"
	"github.com/ethpandaops/horizon-monitor/services"
	"github.com/ethpandaops/horizon-monitor/utils"
)

var queryRegistry *subgraph.QueryRegistry

func getQueryRegistry() (*subgraph.QueryRegistry, error) {
	if queryRegistry != nil {
		return queryRegistry, nil
	}

	registry, err := subgraph.NewDefaultQueryRegistry()
	if err != nil {
		return nil, fmt.Errorf("error loading subgraph queries: %w", err)
	}
	queryRegistry = registry
	return registry, nil
}

// newRPCSource connects to the configured json-rpc endpoint. The caller has to close the source.
func newRPCSource(ctx context.Context) (*rpc.NetworkRPC, error) {
	cfg := utils.Config
	if cfg.Network.RpcUrl == "" {
		return nil, fmt.Errorf("no rpc endpoint configured (network.rpcUrl / RPC_URL)")
	}

	contracts := rpc.ContractAddresses{
		HorizonStaking:  common.HexToAddress(cfg.Contracts.HorizonStaking),
		SubgraphService: common.HexToAddress(cfg.Contracts.SubgraphService),
		DisputeManager:  common.HexToAddress(cfg.Contracts.DisputeManager),
	}

	source, err := rpc.NewNetworkRPC(cfg.Network.RpcUrl, cfg.Network.RpcHeaders, contracts, cfg.Network.RequestTimeout, logger.WithField("module", "rpc"))
	if err != nil {
		return nil, err
	}

	err = source.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to rpc endpoint: %w", err)
	}

	return source, nil
}

func newSubgraphClient(name, endpoint string) (*subgraph.Client, error) {
	registry, err := getQueryRegistry()
	if err != nil {
		return nil, err
	}

	cfg := utils.Config
	client, err := subgraph.NewClient(name, endpoint, cfg.Network.StudioApiKey, cfg.Network.RequestTimeout, registry, logger.WithField("module", name))
	if err != nil {
		return nil, err
	}

	client.SetRateLimiter(subgraph.NewCallRateLimiter(cfg.Network.RateLimit, cfg.Network.RateBurst))
	return client, nil
}

func newNetworkSubgraph() (*subgraph.NetworkSubgraph, error) {
	cfg := utils.Config
	if cfg.Network.SubgraphUrl == "" {
		return nil, fmt.Errorf("no subgraph endpoint configured (network.subgraphUrl / SUBGRAPH_URL)")
	}

	client, err := newSubgraphClient(subgraph.NetworkSourceName, cfg.Network.SubgraphUrl)
	if err != nil {
		return nil, err
	}

	return subgraph.NewNetworkSubgraph(client, cfg.Contracts.SubgraphService, cfg.Network.PageSize, logger.WithField("module", "subgraph")), nil
}

// newQoSSubgraph returns nil if no QoS subgraph is configured.
func newQoSSubgraph() (services.DailyVolumeSource, error) {
	cfg := utils.Config
	if cfg.Network.QosSubgraphUrl == "" {
		return nil, nil
	}

	client, err := newSubgraphClient(subgraph.QoSSourceName, cfg.Network.QosSubgraphUrl)
	if err != nil {
		return nil, err
	}

	return subgraph.NewQoSSubgraph(client, cfg.Network.PageSize, logger.WithField("module", "qos-subgraph")), nil
}

// newNetworkService builds the reconciling service on top of both sources, closeFn releases the rpc connection.
func newNetworkService(ctx context.Context) (service *services.NetworkService, closeFn func(), err error) {
	subgraphSource, err := newNetworkSubgraph()
	if err != nil {
		return nil, nil, err
	}

	rpcSource, err := newRPCSource(ctx)
	if err != nil {
		return nil, nil, err
	}

	service = services.NewNetworkService(rpcSource, subgraphSource, services.NewPayloadValidator(), logger.WithField("module", "network"))
	return service, rpcSource.Close, nil
}

func newFleetProber() *services.FleetProber {
	cfg := utils.Config
	return services.NewFleetProber(services.FleetProberConfig{
		Timeout:        cfg.Prober.Timeout,
		RetryCount:     cfg.Prober.RetryCount,
		RetryBaseDelay: cfg.Prober.RetryBaseDelay,
	}, logger.WithField("module", "prober"))
}

func newMigrationAnalytics() (*services.MigrationAnalytics, error) {
	subgraphSource, err := newNetworkSubgraph()
	if err != nil {
		return nil, err
	}

	volumeSource, err := newQoSSubgraph()
	if err != nil {
		return nil, err
	}

	return services.NewMigrationAnalytics(subgraphSource, volumeSource, newFleetProber(), logger.WithField("module", "migration")), nil
}

func migrationReportOptions(migratedOnly bool) services.MigrationReportOptions {
	return services.MigrationReportOptions{
		HorizonVersion: utils.Config.Migration.HorizonVersion,
		VolumeWindow:   utils.Config.Migration.VolumeWindow,
		MigratedOnly:   migratedOnly,
	}
}
