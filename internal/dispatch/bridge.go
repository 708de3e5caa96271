package dispatch

import (
	"context"
	"math/big"
)

// NullBridge serves offline replays with no RPC endpoint. Fee-growth reads
// resolve to nil, which downstream conversion treats as zero.
type NullBridge struct{}

func (NullBridge) TickFeeGrowthOutside(ctx context.Context, pool string, tickIdx int32) (*big.Int, *big.Int, error) {
	return nil, nil, nil
}

func (NullBridge) FeeGrowthGlobals(ctx context.Context, pool string) (*big.Int, *big.Int, error) {
	return nil, nil, nil
}
