package rollup

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"tickscope/internal/model"
)

const (
	testPool   = "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8"
	testToken  = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	testTickID = testPool + "#100"
)

type fixedBundle struct {
	bundle *model.Bundle
}

func (s *fixedBundle) Bundle() *model.Bundle {
	return s.bundle
}

func TestPoolBucketStartingSnapshot(t *testing.T) {
	registry := NewRegistry(&fixedBundle{})

	pool := model.NewPool(testPool, "0xt0", "0xt1", 3000)
	pool.VolumeUSD = decimal.New(100, 0)
	pool.FeesUSD = decimal.New(3, 0)
	pool.Liquidity = big.NewInt(5000)

	bucket := registry.PoolDay(pool, 1700000000)
	if !bucket.StartingVolumeUSD.Equal(decimal.New(100, 0)) {
		t.Fatalf("starting volume = %s, want 100", bucket.StartingVolumeUSD)
	}
	if bucket.PeriodStart != 1700000000-(1700000000%86400) {
		t.Fatalf("period start = %d", bucket.PeriodStart)
	}
	if bucket.PeriodSeconds != model.BucketDay {
		t.Fatalf("period seconds = %d, want %d", bucket.PeriodSeconds, model.BucketDay)
	}

	// A later fetch in the same period returns the same bucket and keeps
	// the original snapshot.
	pool.VolumeUSD = decimal.New(250, 0)
	again := registry.PoolDay(pool, 1700000000+600)
	if again != bucket {
		t.Fatalf("same period returned a new bucket")
	}
	if !again.StartingVolumeUSD.Equal(decimal.New(100, 0)) {
		t.Fatalf("starting snapshot mutated: %s", again.StartingVolumeUSD)
	}

	// The liquidity copy must not alias the pool's value.
	bucket.Liquidity.Add(bucket.Liquidity, big.NewInt(1))
	if pool.Liquidity.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("bucket liquidity aliases pool liquidity")
	}
}

func TestPoolBucketGranularitiesAreIndependent(t *testing.T) {
	registry := NewRegistry(&fixedBundle{})
	pool := model.NewPool(testPool, "0xt0", "0xt1", 3000)

	day := registry.PoolDay(pool, 1700000000)
	hour := registry.PoolHour(pool, 1700000000)
	five := registry.PoolFiveMinute(pool, 1700000000)

	if day == hour || hour == five {
		t.Fatalf("granularities share a bucket")
	}
	if got := len(registry.PoolBuckets()); got != 3 {
		t.Fatalf("pool buckets = %d, want 3", got)
	}

	// Next period opens a fresh bucket.
	registry.PoolHour(pool, 1700000000+3600)
	if got := len(registry.PoolBuckets()); got != 4 {
		t.Fatalf("pool buckets = %d, want 4", got)
	}
}

func TestTokenBucketRefreshesLatestState(t *testing.T) {
	bundle := model.NewBundle()
	bundle.EthPriceUSD = decimal.New(2000, 0)
	registry := NewRegistry(&fixedBundle{bundle: bundle})

	token := model.NewToken(testToken, 18)
	token.DerivedETH = decimal.New(1, 0)
	token.TotalValueLocked = decimal.New(50, 0)

	bucket := registry.TokenDay(token, 1700000000)
	if !bucket.PriceUSD.Equal(decimal.New(2000, 0)) {
		t.Fatalf("price usd = %s, want 2000", bucket.PriceUSD)
	}
	if bucket.TxCount != 1 {
		t.Fatalf("tx count = %d, want 1", bucket.TxCount)
	}

	token.TotalValueLocked = decimal.New(75, 0)
	bucket = registry.TokenDay(token, 1700000000+60)
	if !bucket.TVL.Equal(decimal.New(75, 0)) {
		t.Fatalf("tvl = %s, want 75", bucket.TVL)
	}
	if bucket.TxCount != 2 {
		t.Fatalf("tx count = %d, want 2", bucket.TxCount)
	}
}

func TestTickBucketSnapshotsCumulatives(t *testing.T) {
	registry := NewRegistry(&fixedBundle{})

	tick := model.NewTick(testPool, 100, 1, 1)
	tick.FeesToken0 = decimal.New(4, 0)
	tick.LiquidityGross = big.NewInt(900)

	bucket := registry.TickFiveMinute(tick, 1700000000)
	if bucket.ID != model.BucketID(testTickID, model.BucketStart(1700000000, model.BucketFiveMinute)) {
		t.Fatalf("bucket id = %s", bucket.ID)
	}
	if !bucket.StartingFeesToken0.Equal(decimal.New(4, 0)) {
		t.Fatalf("starting fees = %s, want 4", bucket.StartingFeesToken0)
	}
	if bucket.LiquidityGross.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("liquidity gross = %s, want 900", bucket.LiquidityGross)
	}
}

func TestBucketStart(t *testing.T) {
	if got := model.BucketStart(1700003605, model.BucketHour); got != 1700002800 {
		t.Fatalf("hour start = %d, want 1700002800", got)
	}
	if got := model.BucketStart(1700000000, model.BucketFiveMinute); got != 1699999800 {
		t.Fatalf("five minute start = %d, want 1699999800", got)
	}
}
