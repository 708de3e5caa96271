package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// BundleID is the key of the singleton reference price record.
const BundleID = "1"

// Bundle stores the current ETH price in USD. It is mutated by the
// Initialize and Swap handlers and never deleted.
type Bundle struct {
	ID          string          `json:"id"`
	EthPriceUSD decimal.Decimal `json:"eth_price_usd"`
}

func NewBundle() *Bundle {
	return &Bundle{ID: BundleID}
}

// Factory holds running totals across all pools of the protocol.
type Factory struct {
	Address             string          `json:"address"`
	PoolCount           uint64          `json:"pool_count"`
	TxCount             uint64          `json:"tx_count"`
	TotalVolumeETH      decimal.Decimal `json:"total_volume_eth"`
	TotalVolumeUSD      decimal.Decimal `json:"total_volume_usd"`
	UntrackedVolumeUSD  decimal.Decimal `json:"untracked_volume_usd"`
	TotalFeesETH        decimal.Decimal `json:"total_fees_eth"`
	TotalFeesUSD        decimal.Decimal `json:"total_fees_usd"`
	TotalValueLockedETH decimal.Decimal `json:"total_value_locked_eth"`
	TotalValueLockedUSD decimal.Decimal `json:"total_value_locked_usd"`
}

func NewFactory(address string) *Factory {
	return &Factory{Address: address}
}

// Token is a per-token aggregate keyed by contract address.
type Token struct {
	Address             string          `json:"address"`
	Symbol              string          `json:"symbol"`
	Decimals            uint8           `json:"decimals"`
	TxCount             uint64          `json:"tx_count"`
	Volume              decimal.Decimal `json:"volume"`
	VolumeUSD           decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD  decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD             decimal.Decimal `json:"fees_usd"`
	TotalValueLocked    decimal.Decimal `json:"total_value_locked"`
	TotalValueLockedUSD decimal.Decimal `json:"total_value_locked_usd"`
	DerivedETH          decimal.Decimal `json:"derived_eth"`
}

func NewToken(address string, decimals uint8) *Token {
	return &Token{Address: address, Decimals: decimals}
}

// Pool is a per-pool aggregate keyed by pool contract address. Tick is nil
// until the pool's Initialize event has been handled.
type Pool struct {
	Address                string          `json:"address"`
	Token0                 string          `json:"token0"`
	Token1                 string          `json:"token1"`
	FeeTier                uint32          `json:"fee_tier"`
	Tick                   *int32          `json:"tick"`
	SqrtPrice              *big.Int        `json:"sqrt_price"`
	Liquidity              *big.Int        `json:"liquidity"`
	FeeGrowthGlobal0X128   *big.Int        `json:"fee_growth_global0_x128"`
	FeeGrowthGlobal1X128   *big.Int        `json:"fee_growth_global1_x128"`
	Token0Price            decimal.Decimal `json:"token0_price"`
	Token1Price            decimal.Decimal `json:"token1_price"`
	TxCount                uint64          `json:"tx_count"`
	VolumeToken0           decimal.Decimal `json:"volume_token0"`
	VolumeToken1           decimal.Decimal `json:"volume_token1"`
	VolumeUSD              decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD     decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD                decimal.Decimal `json:"fees_usd"`
	TotalValueLockedToken0 decimal.Decimal `json:"total_value_locked_token0"`
	TotalValueLockedToken1 decimal.Decimal `json:"total_value_locked_token1"`
	TotalValueLockedETH    decimal.Decimal `json:"total_value_locked_eth"`
	TotalValueLockedUSD    decimal.Decimal `json:"total_value_locked_usd"`
}

func NewPool(address, token0, token1 string, feeTier uint32) *Pool {
	return &Pool{
		Address:              address,
		Token0:               token0,
		Token1:               token1,
		FeeTier:              feeTier,
		SqrtPrice:            new(big.Int),
		Liquidity:            new(big.Int),
		FeeGrowthGlobal0X128: new(big.Int),
		FeeGrowthGlobal1X128: new(big.Int),
	}
}

// Tick is the sparse per-tick record keyed by poolAddress#tickIdx. Created
// on first reference and never deleted; fee and volume fields stay zero
// until a fee-tier-aware resolution runs.
type Tick struct {
	ID                    string          `json:"id"`
	Pool                  string          `json:"pool"`
	TickIdx               int32           `json:"tick_idx"`
	LiquidityGross        *big.Int        `json:"liquidity_gross"`
	LiquidityNet          *big.Int        `json:"liquidity_net"`
	FeeGrowthOutside0X128 *big.Int        `json:"fee_growth_outside0_x128"`
	FeeGrowthOutside1X128 *big.Int        `json:"fee_growth_outside1_x128"`
	FeesToken0            decimal.Decimal `json:"fees_token0"`
	FeesToken1            decimal.Decimal `json:"fees_token1"`
	FeesUSD               decimal.Decimal `json:"fees_usd"`
	VolumeToken0          decimal.Decimal `json:"volume_token0"`
	VolumeToken1          decimal.Decimal `json:"volume_token1"`
	VolumeUSD             decimal.Decimal `json:"volume_usd"`
	CreatedAtBlock        uint64          `json:"created_at_block"`
	CreatedAtTimestamp    uint64          `json:"created_at_timestamp"`
}

// TickID builds the composite tick record key.
func TickID(pool string, tickIdx int32) string {
	return fmt.Sprintf("%s#%d", pool, tickIdx)
}

func NewTick(pool string, tickIdx int32, blockNumber, timestamp uint64) *Tick {
	return &Tick{
		ID:                    TickID(pool, tickIdx),
		Pool:                  pool,
		TickIdx:               tickIdx,
		LiquidityGross:        new(big.Int),
		LiquidityNet:          new(big.Int),
		FeeGrowthOutside0X128: new(big.Int),
		FeeGrowthOutside1X128: new(big.Int),
		CreatedAtBlock:        blockNumber,
		CreatedAtTimestamp:    timestamp,
	}
}
