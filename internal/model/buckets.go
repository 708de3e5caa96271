package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Bucket widths in seconds.
const (
	BucketDay        uint64 = 86400
	BucketHour       uint64 = 3600
	BucketFiveMinute uint64 = 300
)

// BucketStart returns the open timestamp of the bucket containing ts.
func BucketStart(ts, width uint64) uint64 {
	return ts - ts%width
}

// BucketID builds the composite key for an (entity, bucket-start) pair.
func BucketID(entityID string, periodStart uint64) string {
	return fmt.Sprintf("%s#%d", entityID, periodStart)
}

// ProtocolBucket is the protocol-wide rollup row. Starting* fields are
// immutable snapshots of factory cumulative counters at bucket open;
// the matching running fields track the same counters as deltas arrive.
type ProtocolBucket struct {
	ID                 string          `json:"id"`
	PeriodStart        uint64          `json:"period_start"`
	PeriodSeconds      uint64          `json:"period_seconds"`
	VolumeETH          decimal.Decimal `json:"volume_eth"`
	VolumeUSD          decimal.Decimal `json:"volume_usd"`
	FeesUSD            decimal.Decimal `json:"fees_usd"`
	StartingVolumeETH  decimal.Decimal `json:"starting_volume_eth"`
	StartingVolumeUSD  decimal.Decimal `json:"starting_volume_usd"`
	StartingFeesUSD    decimal.Decimal `json:"starting_fees_usd"`
	TVLUSD             decimal.Decimal `json:"tvl_usd"`
	TxCount            uint64          `json:"tx_count"`
}

// PoolBucket is the per-pool rollup row, one per granularity.
type PoolBucket struct {
	ID                   string          `json:"id"`
	Pool                 string          `json:"pool"`
	PeriodStart          uint64          `json:"period_start"`
	PeriodSeconds        uint64          `json:"period_seconds"`
	Liquidity            *big.Int        `json:"liquidity"`
	SqrtPrice            *big.Int        `json:"sqrt_price"`
	Token0Price          decimal.Decimal `json:"token0_price"`
	Token1Price          decimal.Decimal `json:"token1_price"`
	Tick                 *int32          `json:"tick"`
	VolumeToken0         decimal.Decimal `json:"volume_token0"`
	VolumeToken1         decimal.Decimal `json:"volume_token1"`
	VolumeUSD            decimal.Decimal `json:"volume_usd"`
	FeesUSD              decimal.Decimal `json:"fees_usd"`
	StartingVolumeToken0 decimal.Decimal `json:"starting_volume_token0"`
	StartingVolumeToken1 decimal.Decimal `json:"starting_volume_token1"`
	StartingVolumeUSD    decimal.Decimal `json:"starting_volume_usd"`
	StartingFeesUSD      decimal.Decimal `json:"starting_fees_usd"`
	TVLUSD               decimal.Decimal `json:"tvl_usd"`
	TxCount              uint64          `json:"tx_count"`
}

// TokenBucket is the per-token rollup row, one per granularity.
type TokenBucket struct {
	ID                         string          `json:"id"`
	Token                      string          `json:"token"`
	PeriodStart                uint64          `json:"period_start"`
	PeriodSeconds              uint64          `json:"period_seconds"`
	Volume                     decimal.Decimal `json:"volume"`
	VolumeUSD                  decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD         decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD                    decimal.Decimal `json:"fees_usd"`
	StartingVolume             decimal.Decimal `json:"starting_volume"`
	StartingVolumeUSD          decimal.Decimal `json:"starting_volume_usd"`
	StartingUntrackedVolumeUSD decimal.Decimal `json:"starting_untracked_volume_usd"`
	StartingFeesUSD            decimal.Decimal `json:"starting_fees_usd"`
	PriceUSD                   decimal.Decimal `json:"price_usd"`
	TVL                        decimal.Decimal `json:"tvl"`
	TVLUSD                     decimal.Decimal `json:"tvl_usd"`
	TxCount                    uint64          `json:"tx_count"`
}

// TickBucket is the per-tick rollup row. Volume and fee fields hold the
// bucket-local delta, i.e. the tick's cumulative value minus the matching
// Starting* snapshot taken when the bucket opened.
type TickBucket struct {
	ID                   string          `json:"id"`
	Tick                 string          `json:"tick"`
	Pool                 string          `json:"pool"`
	PeriodStart          uint64          `json:"period_start"`
	PeriodSeconds        uint64          `json:"period_seconds"`
	LiquidityGross       *big.Int        `json:"liquidity_gross"`
	LiquidityNet         *big.Int        `json:"liquidity_net"`
	VolumeToken0         decimal.Decimal `json:"volume_token0"`
	VolumeToken1         decimal.Decimal `json:"volume_token1"`
	VolumeUSD            decimal.Decimal `json:"volume_usd"`
	FeesToken0           decimal.Decimal `json:"fees_token0"`
	FeesToken1           decimal.Decimal `json:"fees_token1"`
	FeesUSD              decimal.Decimal `json:"fees_usd"`
	StartingVolumeToken0 decimal.Decimal `json:"starting_volume_token0"`
	StartingVolumeToken1 decimal.Decimal `json:"starting_volume_token1"`
	StartingVolumeUSD    decimal.Decimal `json:"starting_volume_usd"`
	StartingFeesToken0   decimal.Decimal `json:"starting_fees_token0"`
	StartingFeesToken1   decimal.Decimal `json:"starting_fees_token1"`
	StartingFeesUSD      decimal.Decimal `json:"starting_fees_usd"`
}
