package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

const SourceName = "rpc"

// ChainBackend is the subset of the ethclient api used to read contract state.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// ContractAddresses are the protocol contracts read by the rpc source.
type ContractAddresses struct {
	HorizonStaking  common.Address
	SubgraphService common.Address
	DisputeManager  common.Address
}

// NetworkRPC reads horizon protocol facts directly from the contracts via json-rpc.
type NetworkRPC struct {
	endpoint  string
	headers   map[string]string
	timeout   time.Duration
	contracts ContractAddresses
	logger    logrus.FieldLogger
	rpcClient *gethrpc.Client
	backend   ChainBackend
}

// NewNetworkRPC is used to create a new rpc source, Initialize needs to be called before use.
func NewNetworkRPC(endpoint string, headers map[string]string, contracts ContractAddresses, timeout time.Duration, logger logrus.FieldLogger) (*NetworkRPC, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("missing rpc endpoint")
	}

	return &NetworkRPC{
		endpoint:  endpoint,
		headers:   headers,
		timeout:   timeout,
		contracts: contracts,
		logger:    logger,
	}, nil
}

// NewNetworkRPCWithBackend creates a rpc source on top of an existing backend.
func NewNetworkRPCWithBackend(backend ChainBackend, contracts ContractAddresses, timeout time.Duration, logger logrus.FieldLogger) *NetworkRPC {
	return &NetworkRPC{
		timeout:   timeout,
		contracts: contracts,
		logger:    logger,
		backend:   backend,
	}
}

func (c *NetworkRPC) Initialize(ctx context.Context) error {
	if c.backend != nil {
		return nil
	}

	rpcClient, err := gethrpc.DialContext(ctx, c.endpoint)
	if err != nil {
		return err
	}

	for hKey, hVal := range c.headers {
		rpcClient.SetHeader(hKey, hVal)
	}

	c.rpcClient = rpcClient
	c.backend = ethclient.NewClient(rpcClient)

	return nil
}

func (c *NetworkRPC) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

func (c *NetworkRPC) GetChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	return c.backend.ChainID(ctx)
}

func (c *NetworkRPC) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}
