package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tickscope/internal/model"
	"tickscope/internal/pricing"
)

var two = decimal.New(2, 0)

// handleSwap applies a swap: volume and fee aggregates, the pool's
// post-swap liquidity/tick/price, price and TVL refreshes under the new
// rates, fee-growth-global refresh from the contract, the immutable Swap
// record, rollup deltas, and crossed-tick resolution.
func (e *Engine) handleSwap(ctx context.Context, record model.EventRecord, data model.SwapEventData) error {
	bundle, err := e.loadBundle()
	if err != nil {
		return err
	}
	factory, err := e.loadFactory()
	if err != nil {
		return err
	}
	pool, err := e.loadPool(record.Address)
	if err != nil {
		return err
	}

	if _, ok := e.excluded[strings.ToLower(pool.Address)]; ok {
		e.logger.Debug("skipping swap on excluded pool", zap.String("pool", pool.Address))
		return nil
	}

	token0, err := e.loadToken(pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.loadToken(pool.Token1)
	if err != nil {
		return err
	}

	if pool.Tick == nil {
		return fmt.Errorf("pool %s swapped before initialize", pool.Address)
	}
	oldTick := *pool.Tick

	rawAmount0, err := parseBigInt(data.Amount0)
	if err != nil {
		return fmt.Errorf("swap amount0: %w", err)
	}
	rawAmount1, err := parseBigInt(data.Amount1)
	if err != nil {
		return fmt.Errorf("swap amount1: %w", err)
	}
	liquidity, err := parseBigInt(data.Liquidity)
	if err != nil {
		return fmt.Errorf("swap liquidity: %w", err)
	}
	sqrtPrice, err := parseBigInt(data.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("swap sqrt price: %w", err)
	}

	// Signed per-side deltas; absolutes for volume.
	amount0 := pricing.ConvertTokenToDecimal(rawAmount0, token0.Decimals)
	amount1 := pricing.ConvertTokenToDecimal(rawAmount1, token1.Decimals)
	amount0Abs := amount0.Abs()
	amount1Abs := amount1.Abs()

	amount0ETH := amount0Abs.Mul(token0.DerivedETH)
	amount1ETH := amount1Abs.Mul(token1.DerivedETH)
	amount0USD := amount0ETH.Mul(bundle.EthPriceUSD)
	amount1USD := amount1ETH.Mul(bundle.EthPriceUSD)

	// Tracked volume halves the blended estimate so input and output legs
	// are not both counted.
	amountTotalUSDTracked := e.pricer.TrackedAmountUSD(amount0Abs, token0, amount1Abs, token1).DivRound(two, feeScale)
	amountTotalETHTracked := pricing.SafeDiv(amountTotalUSDTracked, bundle.EthPriceUSD)
	amountTotalUSDUntracked := amount0USD.Add(amount1USD).DivRound(two, feeScale)

	feeFraction := decimal.New(int64(pool.FeeTier), -6)
	feesETH := amountTotalETHTracked.Mul(feeFraction)
	feesUSD := amountTotalUSDTracked.Mul(feeFraction)

	factory.TxCount++
	factory.TotalVolumeETH = factory.TotalVolumeETH.Add(amountTotalETHTracked)
	factory.TotalVolumeUSD = factory.TotalVolumeUSD.Add(amountTotalUSDTracked)
	factory.UntrackedVolumeUSD = factory.UntrackedVolumeUSD.Add(amountTotalUSDUntracked)
	factory.TotalFeesETH = factory.TotalFeesETH.Add(feesETH)
	factory.TotalFeesUSD = factory.TotalFeesUSD.Add(feesUSD)

	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Sub(pool.TotalValueLockedETH)

	pool.VolumeToken0 = pool.VolumeToken0.Add(amount0Abs)
	pool.VolumeToken1 = pool.VolumeToken1.Add(amount1Abs)
	pool.VolumeUSD = pool.VolumeUSD.Add(amountTotalUSDTracked)
	pool.UntrackedVolumeUSD = pool.UntrackedVolumeUSD.Add(amountTotalUSDUntracked)
	pool.FeesUSD = pool.FeesUSD.Add(feesUSD)
	pool.TxCount++

	// Post-swap values overwrite the pool's active liquidity, tick, and
	// price.
	newTick := data.Tick
	pool.Liquidity = liquidity
	pool.Tick = &newTick
	pool.SqrtPrice = sqrtPrice
	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1)

	token0.Volume = token0.Volume.Add(amount0Abs)
	token0.TotalValueLocked = token0.TotalValueLocked.Add(amount0)
	token0.VolumeUSD = token0.VolumeUSD.Add(amountTotalUSDTracked)
	token0.UntrackedVolumeUSD = token0.UntrackedVolumeUSD.Add(amountTotalUSDUntracked)
	token0.FeesUSD = token0.FeesUSD.Add(feesUSD)
	token0.TxCount++

	token1.Volume = token1.Volume.Add(amount1Abs)
	token1.TotalValueLocked = token1.TotalValueLocked.Add(amount1)
	token1.VolumeUSD = token1.VolumeUSD.Add(amountTotalUSDTracked)
	token1.UntrackedVolumeUSD = token1.UntrackedVolumeUSD.Add(amountTotalUSDUntracked)
	token1.FeesUSD = token1.FeesUSD.Add(feesUSD)
	token1.TxCount++

	pool.Token0Price, pool.Token1Price = pricing.SqrtPriceX96ToTokenPrices(pool.SqrtPrice, token0, token1)

	bundle.EthPriceUSD = e.pricer.EthPriceUSD()
	token0.DerivedETH = e.pricer.EthPerToken(token0)
	token1.DerivedETH = e.pricer.EthPerToken(token1)

	// Everything touched by the new USD rates.
	pool.TotalValueLockedETH = pool.TotalValueLockedToken0.Mul(token0.DerivedETH).
		Add(pool.TotalValueLockedToken1.Mul(token1.DerivedETH))
	pool.TotalValueLockedUSD = pool.TotalValueLockedETH.Mul(bundle.EthPriceUSD)

	factory.TotalValueLockedETH = factory.TotalValueLockedETH.Add(pool.TotalValueLockedETH)
	factory.TotalValueLockedUSD = factory.TotalValueLockedETH.Mul(bundle.EthPriceUSD)

	token0.TotalValueLockedUSD = token0.TotalValueLocked.Mul(token0.DerivedETH).Mul(bundle.EthPriceUSD)
	token1.TotalValueLockedUSD = token1.TotalValueLocked.Mul(token1.DerivedETH).Mul(bundle.EthPriceUSD)

	swap := &model.SwapRecord{
		ID:           recordID(record.TxHash, pool.TxCount),
		Transaction:  record.TxHash,
		Timestamp:    record.Timestamp,
		Pool:         pool.Address,
		Token0:       pool.Token0,
		Token1:       pool.Token1,
		Sender:       data.Sender,
		Recipient:    data.Recipient,
		Origin:       record.Origin,
		Amount0:      amount0,
		Amount1:      amount1,
		AmountUSD:    amountTotalUSDTracked,
		Tick:         newTick,
		SqrtPriceX96: sqrtPrice,
		LogIndex:     record.LogIndex,
	}
	e.store.PutSwap(swap)

	feeGrowthGlobal0, feeGrowthGlobal1, err := e.bridge.FeeGrowthGlobals(ctx, pool.Address)
	if err != nil {
		return fmt.Errorf("fee growth globals %s: %w", pool.Address, err)
	}
	pool.FeeGrowthGlobal0X128 = orZero(feeGrowthGlobal0)
	pool.FeeGrowthGlobal1X128 = orZero(feeGrowthGlobal1)

	protocolDay := e.rollups.ProtocolDay(factory, record.Timestamp)
	poolDay := e.rollups.PoolDay(pool, record.Timestamp)
	poolHour := e.rollups.PoolHour(pool, record.Timestamp)
	poolFiveMinute := e.rollups.PoolFiveMinute(pool, record.Timestamp)
	token0Day := e.rollups.TokenDay(token0, record.Timestamp)
	token1Day := e.rollups.TokenDay(token1, record.Timestamp)
	token0Hour := e.rollups.TokenHour(token0, record.Timestamp)
	token1Hour := e.rollups.TokenHour(token1, record.Timestamp)

	protocolDay.VolumeETH = protocolDay.VolumeETH.Add(amountTotalETHTracked)
	protocolDay.VolumeUSD = protocolDay.VolumeUSD.Add(amountTotalUSDTracked)
	protocolDay.FeesUSD = protocolDay.FeesUSD.Add(feesUSD)

	for _, bucket := range []*model.PoolBucket{poolDay, poolHour, poolFiveMinute} {
		bucket.VolumeUSD = bucket.VolumeUSD.Add(amountTotalUSDTracked)
		bucket.VolumeToken0 = bucket.VolumeToken0.Add(amount0Abs)
		bucket.VolumeToken1 = bucket.VolumeToken1.Add(amount1Abs)
		bucket.FeesUSD = bucket.FeesUSD.Add(feesUSD)
	}

	for _, bucket := range []*model.TokenBucket{token0Day, token0Hour} {
		bucket.Volume = bucket.Volume.Add(amount0Abs)
		bucket.VolumeUSD = bucket.VolumeUSD.Add(amountTotalUSDTracked)
		bucket.UntrackedVolumeUSD = bucket.UntrackedVolumeUSD.Add(amountTotalUSDTracked)
		bucket.FeesUSD = bucket.FeesUSD.Add(feesUSD)
	}
	for _, bucket := range []*model.TokenBucket{token1Day, token1Hour} {
		bucket.Volume = bucket.Volume.Add(amount1Abs)
		bucket.VolumeUSD = bucket.VolumeUSD.Add(amountTotalUSDTracked)
		bucket.UntrackedVolumeUSD = bucket.UntrackedVolumeUSD.Add(amountTotalUSDTracked)
		bucket.FeesUSD = bucket.FeesUSD.Add(feesUSD)
	}

	return e.resolveCrossedTicks(ctx, pool, token0, token1, bundle, oldTick, newTick, record)
}
