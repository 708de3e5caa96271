package engine

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"tickscope/internal/model"
)

func mintData(tickLower, tickUpper int32, amount, amount0, amount1 string) model.MintEventData {
	return model.MintEventData{
		Sender:    "0xsender",
		Owner:     "0xowner",
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount,
		Amount0:   amount0,
		Amount1:   amount1,
	}
}

func burnData(tickLower, tickUpper int32, amount, amount0, amount1 string) model.BurnEventData {
	return model.BurnEventData{
		Owner:     "0xowner",
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount,
		Amount0:   amount0,
		Amount1:   amount1,
	}
}

func TestMintUpdatesAggregates(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)
	env.setPoolTick(0)

	bundle := env.store.Bundle()
	bundle.EthPriceUSD = decimal.New(10, 0)
	env.store.Token(testToken0).DerivedETH = decimal.New(2, 0)
	env.store.Token(testToken1).DerivedETH = decimal.New(1, 0)

	applyEvent(t, env, "mint", 1700000000, mintData(-60, 60, "1000", "500", "700"))

	pool := env.store.Pool(testPool)
	factory := env.store.Factory(testFactory)

	if pool.Liquidity.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("pool liquidity = %s, want 1000", pool.Liquidity)
	}
	if pool.TxCount != 1 || factory.TxCount != 1 {
		t.Fatalf("tx counts = pool %d factory %d, want 1/1", pool.TxCount, factory.TxCount)
	}

	assertDecimalEq(t, pool.TotalValueLockedToken0, "500", "pool tvl token0")
	assertDecimalEq(t, pool.TotalValueLockedToken1, "700", "pool tvl token1")
	// 500*2 + 700*1 ETH at 10 USD/ETH.
	assertDecimalEq(t, pool.TotalValueLockedETH, "1700", "pool tvl eth")
	assertDecimalEq(t, factory.TotalValueLockedETH, "1700", "factory tvl eth")
	assertDecimalEq(t, factory.TotalValueLockedUSD, "17000", "factory tvl usd")

	lower := env.store.Tick(model.TickID(testPool, -60))
	upper := env.store.Tick(model.TickID(testPool, 60))
	if lower == nil || upper == nil {
		t.Fatalf("boundary ticks not created")
	}
	if lower.LiquidityGross.Cmp(big.NewInt(1000)) != 0 || lower.LiquidityNet.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("lower tick liquidity = gross %s net %s", lower.LiquidityGross, lower.LiquidityNet)
	}
	if upper.LiquidityGross.Cmp(big.NewInt(1000)) != 0 || upper.LiquidityNet.Cmp(big.NewInt(-1000)) != 0 {
		t.Fatalf("upper tick liquidity = gross %s net %s", upper.LiquidityGross, upper.LiquidityNet)
	}

	mints := env.store.DrainMints()
	if len(mints) != 1 {
		t.Fatalf("mint records = %d, want 1", len(mints))
	}
	if mints[0].ID != "0xabc#1" {
		t.Fatalf("mint id = %s, want 0xabc#1", mints[0].ID)
	}
	assertDecimalEq(t, mints[0].AmountUSD, "17000", "mint amount usd")
}

func TestMintOutsideRangeLeavesLiquidity(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)
	env.setPoolTick(0)

	applyEvent(t, env, "mint", 1700000000, mintData(60, 120, "1000", "500", "0"))

	pool := env.store.Pool(testPool)
	if pool.Liquidity.Sign() != 0 {
		t.Fatalf("pool liquidity = %s, want 0", pool.Liquidity)
	}
}

func TestBurnInvertsMint(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)
	env.setPoolTick(0)

	applyEvent(t, env, "mint", 1700000000, mintData(-60, 60, "1000", "500", "700"))
	applyEvent(t, env, "burn", 1700000100, burnData(-60, 60, "1000", "500", "700"))

	pool := env.store.Pool(testPool)
	if pool.Liquidity.Sign() != 0 {
		t.Fatalf("pool liquidity = %s, want 0", pool.Liquidity)
	}
	assertDecimalEq(t, pool.TotalValueLockedToken0, "0", "pool tvl token0")
	assertDecimalEq(t, pool.TotalValueLockedToken1, "0", "pool tvl token1")

	for _, idx := range []int32{-60, 60} {
		tick := env.store.Tick(model.TickID(testPool, idx))
		if tick.LiquidityGross.Sign() != 0 || tick.LiquidityNet.Sign() != 0 {
			t.Fatalf("tick %d liquidity not restored: gross %s net %s", idx, tick.LiquidityGross, tick.LiquidityNet)
		}
	}

	if burns := env.store.DrainBurns(); len(burns) != 1 {
		t.Fatalf("burn records = %d, want 1", len(burns))
	}
	factory := env.store.Factory(testFactory)
	if factory.TxCount != 2 {
		t.Fatalf("factory tx count = %d, want 2", factory.TxCount)
	}
}

func TestLiquidityNetConservation(t *testing.T) {
	env := newTestEnv(t, Config{}, 3000)
	env.setPoolTick(0)

	applyEvent(t, env, "mint", 1700000000, mintData(-120, 120, "300", "1", "1"))
	applyEvent(t, env, "mint", 1700000001, mintData(-60, 60, "500", "1", "1"))
	applyEvent(t, env, "mint", 1700000002, mintData(60, 180, "200", "1", "1"))
	applyEvent(t, env, "burn", 1700000003, burnData(-120, 120, "100", "0", "0"))

	sum := new(big.Int)
	active := new(big.Int)
	for _, tick := range env.store.Ticks() {
		sum.Add(sum, tick.LiquidityNet)
		if tick.TickIdx <= 0 {
			active.Add(active, tick.LiquidityNet)
		}
	}

	if sum.Sign() != 0 {
		t.Fatalf("net liquidity sum = %s, want 0", sum)
	}
	pool := env.store.Pool(testPool)
	if active.Cmp(pool.Liquidity) != 0 {
		t.Fatalf("active net %s != pool liquidity %s", active, pool.Liquidity)
	}
}
