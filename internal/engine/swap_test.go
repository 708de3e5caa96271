package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"tickscope/internal/model"
)

const sqrtPriceOne = "79228162514264337593543950336" // 2^96

func swapData(amount0, amount1, sqrtPrice, liquidity string, tick int32) model.SwapEventData {
	return model.SwapEventData{
		Sender:       "0xsender",
		Recipient:    "0xrecipient",
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Tick:         tick,
	}
}

func TestSwapUpdatesAggregates(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)
	env.setPoolTick(100)
	env.store.PutTick(model.NewTick(testPool, -120, 1, 1))

	bundle := env.store.Bundle()
	bundle.EthPriceUSD = decimal.New(10, 0)
	env.store.Token(testToken0).DerivedETH = decimal.New(2, 0)
	env.store.Token(testToken1).DerivedETH = decimal.New(1, 0)

	env.pricer.ethPrice = decimal.New(10, 0)
	env.pricer.tracked = decimal.New(20000, 0)
	unit := new(big.Int).Lsh(big.NewInt(1), 128)
	env.bridge.global0 = new(big.Int).Mul(unit, big.NewInt(5))
	env.bridge.global1 = new(big.Int).Mul(unit, big.NewInt(7))

	applyEvent(t, env, "swap", 1700000000, swapData("-500", "1000", sqrtPriceOne, "5000", 160))

	pool := env.store.Pool(testPool)
	factory := env.store.Factory(testFactory)

	// Tracked volume is half the pricer's blended estimate.
	assertDecimalEq(t, pool.VolumeUSD, "10000", "pool volume usd")
	assertDecimalEq(t, pool.VolumeToken0, "500", "pool volume token0")
	assertDecimalEq(t, pool.VolumeToken1, "1000", "pool volume token1")
	// Both legs blended: (500*2*10 + 1000*1*10) / 2.
	assertDecimalEq(t, pool.UntrackedVolumeUSD, "10000", "pool untracked usd")
	// 10000 * 3000ppm.
	assertDecimalEq(t, pool.FeesUSD, "30", "pool fees usd")

	assertDecimalEq(t, factory.TotalVolumeUSD, "10000", "factory volume usd")
	assertDecimalEq(t, factory.TotalVolumeETH, "1000", "factory volume eth")
	assertDecimalEq(t, factory.TotalFeesUSD, "30", "factory fees usd")
	assertDecimalEq(t, factory.TotalFeesETH, "3", "factory fees eth")

	if pool.Tick == nil || *pool.Tick != 160 {
		t.Fatalf("pool tick = %v, want 160", pool.Tick)
	}
	if pool.Liquidity.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("pool liquidity = %s, want 5000", pool.Liquidity)
	}
	wantSqrt, _ := new(big.Int).SetString(sqrtPriceOne, 10)
	if pool.SqrtPrice.Cmp(wantSqrt) != 0 {
		t.Fatalf("pool sqrt price = %s, want %s", pool.SqrtPrice, wantSqrt)
	}
	// Equal decimals and a 2^96 sqrt price give parity both ways.
	assertDecimalEq(t, pool.Token0Price, "1", "token0 price")
	assertDecimalEq(t, pool.Token1Price, "1", "token1 price")

	if pool.FeeGrowthGlobal0X128.Cmp(env.bridge.global0) != 0 {
		t.Fatalf("fee growth global0 not refreshed")
	}

	// Signed deltas move TVL: -500 token0 out, +1000 token1 in.
	assertDecimalEq(t, pool.TotalValueLockedToken0, "-500", "pool tvl token0")
	assertDecimalEq(t, pool.TotalValueLockedToken1, "1000", "pool tvl token1")

	// Landing tick 160 plus crossed tick 120 (spacing 60 from old tick 100).
	if env.bridge.tickCalls != 2 {
		t.Fatalf("tickCalls = %d, want 2", env.bridge.tickCalls)
	}
	if env.store.Tick(model.TickID(testPool, 160)) == nil || env.store.Tick(model.TickID(testPool, 120)) == nil {
		t.Fatalf("crossed ticks not created")
	}

	swaps := env.store.DrainSwaps()
	if len(swaps) != 1 {
		t.Fatalf("swap records = %d, want 1", len(swaps))
	}
	if swaps[0].ID != "0xabc#1" || swaps[0].Tick != 160 {
		t.Fatalf("swap record = %+v", swaps[0])
	}
	assertDecimalEq(t, swaps[0].AmountUSD, "10000", "swap amount usd")
	assertDecimalEq(t, swaps[0].Amount0, "-500", "swap amount0")
}

func TestSwapExcludedPoolIsNoop(t *testing.T) {
	env := newTestEnv(t, Config{ExcludedPools: []string{testPool}}, 3000)
	env.setPoolTick(100)
	env.pricer.tracked = decimal.New(20000, 0)

	applyEvent(t, env, "swap", 1700000000, swapData("-500", "1000", sqrtPriceOne, "5000", 160))

	pool := env.store.Pool(testPool)
	factory := env.store.Factory(testFactory)

	if factory.TxCount != 0 || pool.TxCount != 0 {
		t.Fatalf("tx counts changed on excluded pool")
	}
	if !pool.VolumeUSD.IsZero() {
		t.Fatalf("pool volume changed on excluded pool")
	}
	if *pool.Tick != 100 {
		t.Fatalf("pool tick changed on excluded pool")
	}
	if swaps := env.store.DrainSwaps(); len(swaps) != 0 {
		t.Fatalf("swap records = %d, want 0", len(swaps))
	}
}

func TestSwapBeforeInitializeFails(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)

	record := makeRecord(t, "swap", 1700000000, swapData("1", "1", sqrtPriceOne, "1", 0))
	if err := env.engine.Apply(context.Background(), record); err == nil {
		t.Fatalf("expected error for swap before initialize")
	}
}

func TestInitializeSetsPriceAndTick(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)
	env.pricer.ethPrice = decimal.New(1800, 0)

	applyEvent(t, env, "initialize", 1700000000, model.InitializeEventData{
		SqrtPriceX96: sqrtPriceOne,
		Tick:         42,
	})

	pool := env.store.Pool(testPool)
	if pool.Tick == nil || *pool.Tick != 42 {
		t.Fatalf("pool tick = %v, want 42", pool.Tick)
	}
	if pool.SqrtPrice.Sign() == 0 {
		t.Fatalf("pool sqrt price not set")
	}
	assertDecimalEq(t, env.store.Bundle().EthPriceUSD, "1800", "bundle eth price")

	// Day, hour, and five-minute buckets open at initialize.
	if got := len(env.rollups.PoolBuckets()); got != 3 {
		t.Fatalf("pool buckets = %d, want 3", got)
	}
}

func TestFlashRefreshesFeeGrowthOnly(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)
	env.setPoolTick(0)

	unit := new(big.Int).Lsh(big.NewInt(1), 128)
	env.bridge.global0 = new(big.Int).Mul(unit, big.NewInt(9))
	env.bridge.global1 = new(big.Int).Mul(unit, big.NewInt(11))

	applyEvent(t, env, "flash", 1700000000, model.FlashEventData{
		Sender:    "0xsender",
		Recipient: "0xrecipient",
		Amount0:   "100",
		Amount1:   "0",
		Paid0:     "101",
		Paid1:     "0",
	})

	pool := env.store.Pool(testPool)
	if pool.FeeGrowthGlobal0X128.Cmp(env.bridge.global0) != 0 {
		t.Fatalf("fee growth global0 = %s, want %s", pool.FeeGrowthGlobal0X128, env.bridge.global0)
	}
	if pool.FeeGrowthGlobal1X128.Cmp(env.bridge.global1) != 0 {
		t.Fatalf("fee growth global1 = %s, want %s", pool.FeeGrowthGlobal1X128, env.bridge.global1)
	}
	if pool.TxCount != 0 || !pool.VolumeUSD.IsZero() {
		t.Fatalf("flash mutated volume state")
	}
}
