package engine

import (
	"context"
	"fmt"

	"tickscope/internal/model"
)

// handleFlash refreshes only the pool's two global fee-growth
// accumulators; a flash loan moves no volume, TVL, or tick state.
func (e *Engine) handleFlash(ctx context.Context, record model.EventRecord, _ model.FlashEventData) error {
	pool, err := e.loadPool(record.Address)
	if err != nil {
		return err
	}

	feeGrowthGlobal0, feeGrowthGlobal1, err := e.bridge.FeeGrowthGlobals(ctx, pool.Address)
	if err != nil {
		return fmt.Errorf("fee growth globals %s: %w", pool.Address, err)
	}
	pool.FeeGrowthGlobal0X128 = orZero(feeGrowthGlobal0)
	pool.FeeGrowthGlobal1X128 = orZero(feeGrowthGlobal1)

	return nil
}
