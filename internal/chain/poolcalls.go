package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const poolABIJSON = `[
	{"inputs":[{"internalType":"int24","name":"","type":"int24"}],"name":"ticks","outputs":[{"internalType":"uint128","name":"liquidityGross","type":"uint128"},{"internalType":"int128","name":"liquidityNet","type":"int128"},{"internalType":"uint256","name":"feeGrowthOutside0X128","type":"uint256"},{"internalType":"uint256","name":"feeGrowthOutside1X128","type":"uint256"},{"internalType":"int56","name":"tickCumulativeOutside","type":"int56"},{"internalType":"uint160","name":"secondsPerLiquidityOutsideX128","type":"uint160"},{"internalType":"uint32","name":"secondsOutside","type":"uint32"},{"internalType":"bool","name":"initialized","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"feeGrowthGlobal0X128","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"feeGrowthGlobal1X128","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const erc20ABIJSON = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var (
	poolABIOnce sync.Once
	poolABI     abi.ABI
	poolABIErr  error

	erc20ABIOnce sync.Once
	erc20ABI     abi.ABI
	erc20ABIErr  error
)

func getPoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}

func getERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// PoolCaller reads pool fee accumulator state via eth_call.
type PoolCaller struct {
	client     *Client
	maxRetries int
	backoff    time.Duration
}

// NewPoolCaller wraps a chain client with retry settings for pool reads.
func NewPoolCaller(client *Client, maxRetries int, backoff time.Duration) *PoolCaller {
	return &PoolCaller{
		client:     client,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// TickFeeGrowthOutside reads feeGrowthOutside0X128 and feeGrowthOutside1X128
// for a tick from the pool contract.
func (p *PoolCaller) TickFeeGrowthOutside(ctx context.Context, pool string, tickIdx int32) (*big.Int, *big.Int, error) {
	parsed, err := getPoolABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool abi: %w", err)
	}

	data, err := parsed.Pack("ticks", big.NewInt(int64(tickIdx)))
	if err != nil {
		return nil, nil, fmt.Errorf("pack ticks(%d): %w", tickIdx, err)
	}

	output, err := p.call(ctx, pool, data)
	if err != nil {
		return nil, nil, fmt.Errorf("call ticks(%d) on %s: %w", tickIdx, pool, err)
	}

	values, err := parsed.Unpack("ticks", output)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack ticks(%d): %w", tickIdx, err)
	}
	if len(values) < 4 {
		return nil, nil, fmt.Errorf("unexpected ticks output length %d", len(values))
	}

	outside0, ok := values[2].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected feeGrowthOutside0X128 type %T", values[2])
	}
	outside1, ok := values[3].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected feeGrowthOutside1X128 type %T", values[3])
	}

	return outside0, outside1, nil
}

// FeeGrowthGlobals reads feeGrowthGlobal0X128 and feeGrowthGlobal1X128
// from the pool contract.
func (p *PoolCaller) FeeGrowthGlobals(ctx context.Context, pool string) (*big.Int, *big.Int, error) {
	global0, err := p.callUint256(ctx, pool, "feeGrowthGlobal0X128")
	if err != nil {
		return nil, nil, err
	}

	global1, err := p.callUint256(ctx, pool, "feeGrowthGlobal1X128")
	if err != nil {
		return nil, nil, err
	}

	return global0, global1, nil
}

// ERC20Decimals reads the decimals of an ERC20 token.
func (p *PoolCaller) ERC20Decimals(ctx context.Context, token string) (uint8, error) {
	parsed, err := getERC20ABI()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := parsed.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}

	output, err := p.call(ctx, token, data)
	if err != nil {
		return 0, fmt.Errorf("call decimals on %s: %w", token, err)
	}

	values, err := parsed.Unpack("decimals", output)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unexpected decimals output length %d", len(values))
	}

	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}

	return decimals, nil
}

func (p *PoolCaller) callUint256(ctx context.Context, pool, method string) (*big.Int, error) {
	parsed, err := getPoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	output, err := p.call(ctx, pool, data)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, pool, err)
	}

	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s output length %d", method, len(values))
	}

	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s type %T", method, values[0])
	}

	return value, nil
}

func (p *PoolCaller) call(ctx context.Context, contract string, data []byte) ([]byte, error) {
	address := common.HexToAddress(contract)
	msg := ethereum.CallMsg{
		To:   &address,
		Data: data,
	}

	var output []byte
	err := withRetry(ctx, p.maxRetries, p.backoff, func(ctx context.Context) error {
		var callErr error
		output, callErr = p.client.CallContract(ctx, msg, nil)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	return output, nil
}
