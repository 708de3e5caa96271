package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tickscope/internal/model"
)

// MinTick bounds the downward walk when searching for a previously
// initialized tick.
const MinTick int32 = -887282

// feeScale fixes the fractional digits kept when dividing fees by the
// pool's fee fraction.
const feeScale = 18

// FeeTierToTickSpacing maps a fee tier (parts per million) to the pool's
// tick spacing. Higher tiers use wider spacing.
func FeeTierToTickSpacing(feeTier uint32) (int32, error) {
	switch feeTier {
	case 100:
		return 1, nil
	case 500:
		return 10, nil
	case 3000:
		return 60, nil
	case 10000:
		return 200, nil
	default:
		return 0, fmt.Errorf("unexpected fee tier %d", feeTier)
	}
}

// getOrCreateTick returns an owned, mutable handle to the tick record,
// creating it with zeroed accounting fields on first reference.
func (e *Engine) getOrCreateTick(pool *model.Pool, tickIdx int32, record model.EventRecord) *model.Tick {
	id := model.TickID(pool.Address, tickIdx)
	tick := e.store.Tick(id)
	if tick == nil {
		e.logger.Debug("creating tick", zap.String("pool", pool.Address), zap.Int32("tick_idx", tickIdx))
		tick = model.NewTick(pool.Address, tickIdx, record.BlockNumber, record.Timestamp)
		e.store.PutTick(tick)
	}
	return tick
}

// resolveTick recomputes a tick's fee-growth-inside-derived metrics. In
// swap mode the tick's fee-growth-outside accumulators are first refreshed
// from the pool contract; Mint/Burn invoke it without the refresh, so
// their fee and volume figures may rest on stale accumulators until the
// next swap. No path here fails short of a bridge error: missing
// neighbors and degenerate fee tiers are logged and recovered.
func (e *Engine) resolveTick(ctx context.Context, pool *model.Pool, token0, token1 *model.Token, bundle *model.Bundle, tickIdx int32, record model.EventRecord, swapMode bool) error {
	tick := e.getOrCreateTick(pool, tickIdx, record)

	if swapMode {
		fg0, fg1, err := e.bridge.TickFeeGrowthOutside(ctx, pool.Address, tickIdx)
		if err != nil {
			return fmt.Errorf("tick fee growth %s#%d: %w", pool.Address, tickIdx, err)
		}
		tick.FeeGrowthOutside0X128 = orZero(fg0)
		tick.FeeGrowthOutside1X128 = orZero(fg1)
	}

	spacing, err := FeeTierToTickSpacing(pool.FeeTier)
	feeFraction := decimal.New(int64(pool.FeeTier), -6)
	if err != nil || !feeFraction.IsPositive() {
		e.logger.Warn("skipping tick fee derivation",
			zap.String("pool", pool.Address),
			zap.Uint32("fee_tier", pool.FeeTier),
		)
	} else {
		e.deriveTickFees(pool, token0, token1, bundle, tick, spacing, feeFraction)
	}

	e.updateTickBuckets(tick, record.Timestamp)
	return nil
}

func (e *Engine) deriveTickFees(pool *model.Pool, token0, token1 *model.Token, bundle *model.Bundle, tick *model.Tick, spacing int32, feeFraction decimal.Decimal) {
	// Not every spacing-aligned index is initialized; walk down until a
	// previously created tick is found or the global bound is passed.
	var prev *model.Tick
	prevIdx := tick.TickIdx
	steps := 0
	for prev == nil && prevIdx >= MinTick {
		prevIdx -= spacing
		steps++
		prev = e.store.Tick(model.TickID(pool.Address, prevIdx))
	}

	if prev == nil {
		e.logger.Warn("no previous initialized tick",
			zap.String("pool", pool.Address),
			zap.Int32("tick_idx", tick.TickIdx),
		)
	} else if steps > 1 {
		e.logger.Debug("previous tick gap",
			zap.String("pool", pool.Address),
			zap.Int32("tick_idx", tick.TickIdx),
			zap.Int("steps", steps),
		)
	}

	currentTick := int32(0)
	if pool.Tick != nil {
		currentTick = *pool.Tick
	}

	var below0, below1 *big.Int
	switch {
	case prev == nil:
		// Tick is below everything tracked; the pool accumulator holds
		// all growth.
		below0 = pool.FeeGrowthGlobal0X128
		below1 = pool.FeeGrowthGlobal1X128
	case currentTick >= prev.TickIdx:
		below0 = prev.FeeGrowthOutside0X128
		below1 = prev.FeeGrowthOutside1X128
	default:
		below0 = new(big.Int).Sub(pool.FeeGrowthGlobal0X128, prev.FeeGrowthOutside0X128)
		below1 = new(big.Int).Sub(pool.FeeGrowthGlobal1X128, prev.FeeGrowthOutside1X128)
	}

	var above0, above1 *big.Int
	if currentTick < tick.TickIdx {
		above0 = tick.FeeGrowthOutside0X128
		above1 = tick.FeeGrowthOutside1X128
	} else {
		above0 = new(big.Int).Sub(pool.FeeGrowthGlobal0X128, tick.FeeGrowthOutside0X128)
		above1 = new(big.Int).Sub(pool.FeeGrowthGlobal1X128, tick.FeeGrowthOutside1X128)
	}

	inside0 := new(big.Int).Sub(pool.FeeGrowthGlobal0X128, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(big.Int).Sub(pool.FeeGrowthGlobal1X128, below1)
	inside1.Sub(inside1, above1)

	tick.FeesToken0 = Q128ToDecimal(new(big.Int).Mul(inside0, tick.LiquidityGross))
	tick.VolumeToken0 = tick.FeesToken0.DivRound(feeFraction, feeScale)
	tick.FeesToken1 = Q128ToDecimal(new(big.Int).Mul(inside1, tick.LiquidityGross))
	tick.VolumeToken1 = tick.FeesToken1.DivRound(feeFraction, feeScale)

	fees0USD := token0.DerivedETH.Mul(bundle.EthPriceUSD).Mul(tick.FeesToken0)
	fees1USD := token1.DerivedETH.Mul(bundle.EthPriceUSD).Mul(tick.FeesToken1)
	tick.FeesUSD = fees0USD.Add(fees1USD)
	tick.VolumeUSD = tick.FeesUSD.DivRound(feeFraction, feeScale)
}

// updateTickBuckets writes bucket-local deltas (cumulative minus the
// bucket's starting snapshot) into the tick's rollup rows.
func (e *Engine) updateTickBuckets(tick *model.Tick, ts uint64) {
	for _, bucket := range []*model.TickBucket{
		e.rollups.TickDay(tick, ts),
		e.rollups.TickHour(tick, ts),
		e.rollups.TickFiveMinute(tick, ts),
	} {
		bucket.VolumeToken0 = tick.VolumeToken0.Sub(bucket.StartingVolumeToken0)
		bucket.VolumeToken1 = tick.VolumeToken1.Sub(bucket.StartingVolumeToken1)
		bucket.VolumeUSD = tick.VolumeUSD.Sub(bucket.StartingVolumeUSD)
		bucket.FeesToken0 = tick.FeesToken0.Sub(bucket.StartingFeesToken0)
		bucket.FeesToken1 = tick.FeesToken1.Sub(bucket.StartingFeesToken1)
		bucket.FeesUSD = tick.FeesUSD.Sub(bucket.StartingFeesUSD)
	}
}

// resolveCrossedTicks resolves the landing tick of a swap and, when the
// move stays within the crossing bound, every spacing-aligned tick
// between the old and new active tick, in price order.
func (e *Engine) resolveCrossedTicks(ctx context.Context, pool *model.Pool, token0, token1 *model.Token, bundle *model.Bundle, oldTick, newTick int32, record model.EventRecord) error {
	if err := e.resolveTick(ctx, pool, token0, token1, bundle, newTick, record, true); err != nil {
		return err
	}

	spacing, err := FeeTierToTickSpacing(pool.FeeTier)
	if err != nil {
		e.logger.Warn("skipping tick crossing resolution",
			zap.String("pool", pool.Address),
			zap.Error(err),
		)
		return nil
	}

	moved := oldTick - newTick
	if moved < 0 {
		moved = -moved
	}
	if moved/spacing > e.cfg.MaxTickCrossings {
		e.logger.Warn("tick crossing bound exceeded",
			zap.String("pool", pool.Address),
			zap.Int32("old_tick", oldTick),
			zap.Int32("new_tick", newTick),
			zap.Int32("spacing", spacing),
		)
		return nil
	}

	modulo := ((oldTick % spacing) + spacing) % spacing
	if newTick > oldTick {
		for i := oldTick + (spacing - modulo); i <= newTick; i += spacing {
			if err := e.resolveTick(ctx, pool, token0, token1, bundle, i, record, true); err != nil {
				return err
			}
		}
	} else if newTick < oldTick {
		for i := oldTick - modulo; i >= newTick; i -= spacing {
			if err := e.resolveTick(ctx, pool, token0, token1, bundle, i, record, true); err != nil {
				return err
			}
		}
	}

	return nil
}
