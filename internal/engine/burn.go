package engine

import (
	"context"
	"fmt"

	"tickscope/internal/model"
	"tickscope/internal/pricing"
)

// handleBurn mirrors handleMint with all TVL, liquidity, and tick-net
// signs inverted.
func (e *Engine) handleBurn(ctx context.Context, record model.EventRecord, data model.BurnEventData) error {
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
		return fmt.Errorf("burn amount: %w", err)
	}
	rawAmount0, err := parseBigInt(data.Amount0)
	if err != nil {
		return fmt.Errorf("burn amount0: %w", err)
	}
	rawAmount1, err := parseBigInt(data.Amount1)
	if err != nil {
		return fmt.Errorf("burn amount1: %w", err)
	}

	amount0 := pricing.ConvertTokenToDecimal(rawAmount0, token0.Decimals)
	amount1 := pricing.ConvertTokenToDecimal(rawAmount1, token1.Decimals)

	amountUSD := amount0.Mul(token0.DerivedETH.Mul(bundle.EthPriceUSD)).
		Add(amount1.Mul(token1.DerivedETH.Mul(bundle.EthPriceUSD)))

	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Sub(pool.TotalValueLockedETH)
	factory.TxCount++

	token0.TxCount++
	token0.TotalValueLocked = token0.TotalValueLocked.Sub(amount0)
	token0.TotalValueLockedUSD = token0.TotalValueLocked.Mul(token0.DerivedETH.Mul(bundle.EthPriceUSD))

	token1.TxCount++
	token1.TotalValueLocked = token1.TotalValueLocked.Sub(amount1)
	token1.TotalValueLockedUSD = token1.TotalValueLocked.Mul(token1.DerivedETH.Mul(bundle.EthPriceUSD))

	pool.TxCount++

	// Active liquidity only shrinks when the burnt position includes the
	// pool's current tick.
	if pool.Tick != nil && data.TickLower <= *pool.Tick && data.TickUpper > *pool.Tick {
		pool.Liquidity.Sub(pool.Liquidity, amount)
	}

	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Sub(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Sub(amount1)
	pool.TotalValueLockedETH = pool.TotalValueLockedToken0.Mul(token0.DerivedETH).
		Add(pool.TotalValueLockedToken1.Mul(token1.DerivedETH))
	pool.TotalValueLockedUSD = pool.TotalValueLockedETH.Mul(bundle.EthPriceUSD)

	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Add(pool.TotalValueLockedETH)
	factory.TotalValueLockedUSD = factory.TotalValueLockedETH.Mul(bundle.EthPriceUSD)

	burn := &model.BurnRecord{
		ID:          recordID(record.TxHash, pool.TxCount),
		Transaction: record.TxHash,
		Timestamp:   record.Timestamp,
		Pool:        pool.Address,
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		Owner:       data.Owner,
		Origin:      record.Origin,
		Amount:      amount,
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   amountUSD,
		TickLower:   data.TickLower,
		TickUpper:   data.TickUpper,
		LogIndex:    record.LogIndex,
	}
	e.store.PutBurn(burn)

	lowerTick := e.getOrCreateTick(pool, data.TickLower, record)
	upperTick := e.getOrCreateTick(pool, data.TickUpper, record)

	lowerTick.LiquidityGross.Sub(lowerTick.LiquidityGross, amount)
	lowerTick.LiquidityNet.Sub(lowerTick.LiquidityNet, amount)
	upperTick.LiquidityGross.Sub(upperTick.LiquidityGross, amount)
	upperTick.LiquidityNet.Add(upperTick.LiquidityNet, amount)

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
