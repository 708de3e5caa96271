package engine

import (
	"context"
	"fmt"

	"tickscope/internal/model"
	"tickscope/internal/pricing"
)

// handleMint applies a liquidity mint: decimal amounts and USD value, tx
// counters, active liquidity when the position straddles the current
// tick, TVL via the subtract-mutate-readd pattern, boundary tick
// liquidity, the immutable Mint record, and rollup deltas.
func (e *Engine) handleMint(ctx context.Context, record model.EventRecord, data model.MintEventData) error {
	bundle, err := e.loadBundle()
	if err != nil {
		return err
	}
	pool, err := e.loadPool(record.Address)
	if err != nil {
		return err
	}
	factory, err := e.loadFactory()
	if err != nil {
		return err
	}
	token0, err := e.loadToken(pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.loadToken(pool.Token1)
	if err != nil {
		return err
	}

	amount, err := parseBigInt(data.Amount)
	if err != nil {
		return fmt.Errorf("mint amount: %w", err)
	}
	rawAmount0, err := parseBigInt(data.Amount0)
	if err != nil {
		return fmt.Errorf("mint amount0: %w", err)
	}
	rawAmount1, err := parseBigInt(data.Amount1)
	if err != nil {
		return fmt.Errorf("mint amount1: %w", err)
	}

	amount0 := pricing.ConvertTokenToDecimal(rawAmount0, token0.Decimals)
	amount1 := pricing.ConvertTokenToDecimal(rawAmount1, token1.Decimals)

	amountUSD := amount0.Mul(token0.DerivedETH.Mul(bundle.EthPriceUSD)).
		Add(amount1.Mul(token1.DerivedETH.Mul(bundle.EthPriceUSD)))

	// Factory TVL is a sum over pools: back the pool's prior contribution
	// out before mutating, re-add the recomputed value after.
	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Sub(pool.TotalValueLockedETH)
	factory.TxCount++

	token0.TxCount++
	token0.TotalValueLocked = token0.TotalValueLocked.Add(amount0)
	token0.TotalValueLockedUSD = token0.TotalValueLocked.Mul(token0.DerivedETH.Mul(bundle.EthPriceUSD))

	token1.TxCount++
	token1.TotalValueLocked = token1.TotalValueLocked.Add(amount1)
	token1.TotalValueLockedUSD = token1.TotalValueLocked.Mul(token1.DerivedETH.Mul(bundle.EthPriceUSD))

	pool.TxCount++

	// Active liquidity only grows when the new position includes the
	// pool's current tick.
	if pool.Tick != nil && data.TickLower <= *pool.Tick && data.TickUpper > *pool.Tick {
		pool.Liquidity.Add(pool.Liquidity, amount)
	}

	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1)
	pool.TotalValueLockedETH = pool.TotalValueLockedToken0.Mul(token0.DerivedETH).
		Add(pool.TotalValueLockedToken1.Mul(token1.DerivedETH))
	pool.TotalValueLockedUSD = pool.TotalValueLockedETH.Mul(bundle.EthPriceUSD)

	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Add(pool.TotalValueLockedETH)
	factory.TotalValueLockedUSD = factory.TotalValueLockedETH.Mul(bundle.EthPriceUSD)

	mint := &model.MintRecord{
		ID:          recordID(record.TxHash, pool.TxCount),
		Transaction: record.TxHash,
		Timestamp:   record.Timestamp,
		Pool:        pool.Address,
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		Owner:       data.Owner,
		Sender:      data.Sender,
		Origin:      record.Origin,
		Amount:      amount,
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   amountUSD,
		TickLower:   data.TickLower,
		TickUpper:   data.TickUpper,
		LogIndex:    record.LogIndex,
	}
	e.store.PutMint(mint)

	lowerTick := e.getOrCreateTick(pool, data.TickLower, record)
	upperTick := e.getOrCreateTick(pool, data.TickUpper, record)

	lowerTick.LiquidityGross.Add(lowerTick.LiquidityGross, amount)
	lowerTick.LiquidityNet.Add(lowerTick.LiquidityNet, amount)
	upperTick.LiquidityGross.Add(upperTick.LiquidityGross, amount)
	upperTick.LiquidityNet.Sub(upperTick.LiquidityNet, amount)

	e.rollups.ProtocolDay(factory, record.Timestamp)
	e.rollups.PoolDay(pool, record.Timestamp)
	e.rollups.PoolHour(pool, record.Timestamp)
	e.rollups.PoolFiveMinute(pool, record.Timestamp)
	e.rollups.TokenDay(token0, record.Timestamp)
	e.rollups.TokenDay(token1, record.Timestamp)
	e.rollups.TokenHour(token0, record.Timestamp)
	e.rollups.TokenHour(token1, record.Timestamp)

	if err := e.resolveTick(ctx, pool, token0, token1, bundle, data.TickLower, record, false); err != nil {
		return err
	}
	return e.resolveTick(ctx, pool, token0, token1, bundle, data.TickUpper, record, false)
}
