package engine

import (
	"fmt"

	"tickscope/internal/model"
)

// handleInitialize records the pool's first price and tick, refreshes the
// reference price and both tokens' derived ETH price, and opens the
// pool's time buckets. The pool record itself must pre-exist.
func (e *Engine) handleInitialize(record model.EventRecord, data model.InitializeEventData) error {
	pool, err := e.loadPool(record.Address)
	if err != nil {
		return err
	}
	bundle, err := e.loadBundle()
	if err != nil {
		return err
	}

	sqrtPrice, err := parseBigInt(data.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("initialize sqrt price: %w", err)
	}

	tick := data.Tick
	pool.SqrtPrice = sqrtPrice
	pool.Tick = &tick

	token0, err := e.loadToken(pool.Token0)
	if err != nil {
		return err
	}
	token1, err := e.loadToken(pool.Token1)
	if err != nil {
		return err
	}

	bundle.EthPriceUSD = e.pricer.EthPriceUSD()

	e.rollups.PoolDay(pool, record.Timestamp)
	e.rollups.PoolHour(pool, record.Timestamp)
	e.rollups.PoolFiveMinute(pool, record.Timestamp)

	token0.DerivedETH = e.pricer.EthPerToken(token0)
	token1.DerivedETH = e.pricer.EthPerToken(token1)

	return nil
}
