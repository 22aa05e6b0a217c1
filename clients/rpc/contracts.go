package rpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/horizon-monitor/types"
)

const (
	ContractHorizonStaking  = "HorizonStaking"
	ContractSubgraphService = "SubgraphService"
	ContractDisputeManager  = "DisputeManager"
)

// Struct return values are declared as flat output lists, which encodes identically for static tuples.
const horizonStakingAbi = `[
	{"type":"function","name":"getMaxThawingPeriod","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"getServiceProvider","stateMutability":"view","inputs":[{"name":"serviceProvider","type":"address"}],"outputs":[
		{"name":"tokensStaked","type":"uint256"},
		{"name":"tokensProvisioned","type":"uint256"}
	]},
	{"type":"function","name":"getDelegationPool","stateMutability":"view","inputs":[{"name":"serviceProvider","type":"address"},{"name":"verifier","type":"address"}],"outputs":[
		{"name":"tokens","type":"uint256"},
		{"name":"shares","type":"uint256"},
		{"name":"tokensThawing","type":"uint256"},
		{"name":"sharesThawing","type":"uint256"},
		{"name":"thawingNonce","type":"uint256"}
	]},
	{"type":"function","name":"getProvision","stateMutability":"view","inputs":[{"name":"serviceProvider","type":"address"},{"name":"verifier","type":"address"}],"outputs":[
		{"name":"tokens","type":"uint256"},
		{"name":"tokensThawing","type":"uint256"},
		{"name":"sharesThawing","type":"uint256"},
		{"name":"maxVerifierCut","type":"uint32"},
		{"name":"thawingPeriod","type":"uint64"},
		{"name":"createdAt","type":"uint64"},
		{"name":"maxVerifierCutPending","type":"uint32"},
		{"name":"thawingPeriodPending","type":"uint64"},
		{"name":"lastParametersStagedAt","type":"uint64"},
		{"name":"thawingNonce","type":"uint256"}
	]},
	{"type":"function","name":"getIdleStake","stateMutability":"view","inputs":[{"name":"serviceProvider","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTokensAvailable","stateMutability":"view","inputs":[{"name":"serviceProvider","type":"address"},{"name":"verifier","type":"address"},{"name":"delegationRatio","type":"uint32"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const subgraphServiceAbi = `[
	{"type":"function","name":"getProvisionTokensRange","stateMutability":"view","inputs":[],"outputs":[{"name":"min","type":"uint256"},{"name":"max","type":"uint256"}]},
	{"type":"function","name":"getThawingPeriodRange","stateMutability":"view","inputs":[],"outputs":[{"name":"min","type":"uint64"},{"name":"max","type":"uint64"}]},
	{"type":"function","name":"getVerifierCutRange","stateMutability":"view","inputs":[],"outputs":[{"name":"min","type":"uint32"},{"name":"max","type":"uint32"}]},
	{"type":"function","name":"getDelegationRatio","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
	{"type":"function","name":"curationFeesCut","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"maxPOIStaleness","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"stakeToFeesRatio","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"indexers","stateMutability":"view","inputs":[{"name":"indexer","type":"address"}],"outputs":[{"name":"url","type":"string"},{"name":"geoHash","type":"string"}]},
	{"type":"function","name":"paymentsDestination","stateMutability":"view","inputs":[{"name":"indexer","type":"address"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"allocationProvisionTracker","stateMutability":"view","inputs":[{"name":"indexer","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"feesProvisionTracker","stateMutability":"view","inputs":[{"name":"indexer","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const disputeManagerAbi = `[
	{"type":"function","name":"disputePeriod","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"fishermanRewardCut","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]},
	{"type":"function","name":"disputeDeposit","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	HorizonStakingABI  = mustParseAbi(horizonStakingAbi)
	SubgraphServiceABI = mustParseAbi(subgraphServiceAbi)
	DisputeManagerABI  = mustParseAbi(disputeManagerAbi)
)

func mustParseAbi(definition string) *abi.ABI {
	contractAbi, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("failed to parse contract abi: %v", err))
	}
	return &contractAbi
}

// contractCall describes a single view call against a protocol contract.
type contractCall struct {
	contract string
	address  common.Address
	abi      *abi.ABI
	method   string
	args     []interface{}
}

func (c *NetworkRPC) horizonStaking(method string, args ...interface{}) *contractCall {
	return &contractCall{ContractHorizonStaking, c.contracts.HorizonStaking, HorizonStakingABI, method, args}
}

func (c *NetworkRPC) subgraphService(method string, args ...interface{}) *contractCall {
	return &contractCall{ContractSubgraphService, c.contracts.SubgraphService, SubgraphServiceABI, method, args}
}

func (c *NetworkRPC) disputeManager(method string, args ...interface{}) *contractCall {
	return &contractCall{ContractDisputeManager, c.contracts.DisputeManager, DisputeManagerABI, method, args}
}

func (call *contractCall) error(err error) error {
	return &types.SourceError{
		Source:   SourceName,
		Method:   call.method,
		Contract: call.contract,
		Err:      err,
	}
}

// call executes the view call against the latest block and returns the unpacked outputs.
func (c *NetworkRPC) call(ctx context.Context, call *contractCall) ([]interface{}, error) {
	if call.address == (common.Address{}) {
		return nil, call.error(fmt.Errorf("contract address not configured"))
	}

	data, err := call.abi.Pack(call.method, call.args...)
	if err != nil {
		return nil, call.error(fmt.Errorf("pack failed: %w", err))
	}

	res, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &call.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, call.error(err)
	}

	values, err := call.abi.Unpack(call.method, res)
	if err != nil {
		return nil, call.error(fmt.Errorf("unpack failed: %w", err))
	}

	return values, nil
}

// callBigInts executes the view call and converts every output to a big.Int.
func (c *NetworkRPC) callBigInts(ctx context.Context, call *contractCall) ([]*big.Int, error) {
	values, err := c.call(ctx, call)
	if err != nil {
		return nil, err
	}

	res := make([]*big.Int, len(values))
	for i, value := range values {
		res[i], err = toBigInt(value)
		if err != nil {
			return nil, call.error(fmt.Errorf("output %v: %w", i, err))
		}
	}
	return res, nil
}

func toBigInt(value interface{}) (*big.Int, error) {
	switch val := value.(type) {
	case *big.Int:
		return new(big.Int).Set(val), nil
	case uint64:
		return new(big.Int).SetUint64(val), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(val)), nil
	default:
		return nil, fmt.Errorf("unexpected output type %T", value)
	}
}
