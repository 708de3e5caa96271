package rollup

import (
	"fmt"
	"math/big"
	"strings"

	"tickscope/internal/model"
)

// BundleSource exposes the reference price record to bucket snapshots.
type BundleSource interface {
	Bundle() *model.Bundle
}

// Registry lazily creates and hands out time-bucket records. Creation
// snapshots the entity's cumulative counters into the bucket's starting
// fields; every later fetch refreshes the latest-state fields. Callers
// add their deltas to the running fields.
type Registry struct {
	bundles  BundleSource
	protocol map[string]*model.ProtocolBucket
	pools    map[string]*model.PoolBucket
	tokens   map[string]*model.TokenBucket
	ticks    map[string]*model.TickBucket
}

func NewRegistry(bundles BundleSource) *Registry {
	return &Registry{
		bundles:  bundles,
		protocol: make(map[string]*model.ProtocolBucket),
		pools:    make(map[string]*model.PoolBucket),
		tokens:   make(map[string]*model.TokenBucket),
		ticks:    make(map[string]*model.TickBucket),
	}
}

func bucketKey(width uint64, entityID string, periodStart uint64) string {
	return fmt.Sprintf("%d:%s#%d", width, strings.ToLower(entityID), periodStart)
}

func (r *Registry) ProtocolDay(factory *model.Factory, ts uint64) *model.ProtocolBucket {
	start := model.BucketStart(ts, model.BucketDay)
	key := bucketKey(model.BucketDay, factory.Address, start)
	bucket := r.protocol[key]
	if bucket == nil {
		bucket = &model.ProtocolBucket{
			ID:                model.BucketID(factory.Address, start),
			PeriodStart:       start,
			PeriodSeconds:     model.BucketDay,
			VolumeETH:         factory.TotalVolumeETH,
			VolumeUSD:         factory.TotalVolumeUSD,
			FeesUSD:           factory.TotalFeesUSD,
			StartingVolumeETH: factory.TotalVolumeETH,
			StartingVolumeUSD: factory.TotalVolumeUSD,
			StartingFeesUSD:   factory.TotalFeesUSD,
		}
		r.protocol[key] = bucket
	}

	bucket.TVLUSD = factory.TotalValueLockedUSD
	bucket.TxCount = factory.TxCount
	return bucket
}

func (r *Registry) PoolDay(pool *model.Pool, ts uint64) *model.PoolBucket {
	return r.poolBucket(pool, ts, model.BucketDay)
}

func (r *Registry) PoolHour(pool *model.Pool, ts uint64) *model.PoolBucket {
	return r.poolBucket(pool, ts, model.BucketHour)
}

func (r *Registry) PoolFiveMinute(pool *model.Pool, ts uint64) *model.PoolBucket {
	return r.poolBucket(pool, ts, model.BucketFiveMinute)
}

func (r *Registry) poolBucket(pool *model.Pool, ts, width uint64) *model.PoolBucket {
	start := model.BucketStart(ts, width)
	key := bucketKey(width, pool.Address, start)
	bucket := r.pools[key]
	if bucket == nil {
		bucket = &model.PoolBucket{
			ID:                   model.BucketID(pool.Address, start),
			Pool:                 pool.Address,
			PeriodStart:          start,
			PeriodSeconds:        width,
			VolumeToken0:         pool.VolumeToken0,
			VolumeToken1:         pool.VolumeToken1,
			VolumeUSD:            pool.VolumeUSD,
			FeesUSD:              pool.FeesUSD,
			StartingVolumeToken0: pool.VolumeToken0,
			StartingVolumeToken1: pool.VolumeToken1,
			StartingVolumeUSD:    pool.VolumeUSD,
			StartingFeesUSD:      pool.FeesUSD,
		}
		r.pools[key] = bucket
	}

	bucket.Liquidity = copyBigInt(pool.Liquidity)
	bucket.SqrtPrice = copyBigInt(pool.SqrtPrice)
	bucket.Token0Price = pool.Token0Price
	bucket.Token1Price = pool.Token1Price
	bucket.Tick = copyTick(pool.Tick)
	bucket.TVLUSD = pool.TotalValueLockedUSD
	bucket.TxCount++
	return bucket
}

func (r *Registry) TokenDay(token *model.Token, ts uint64) *model.TokenBucket {
	return r.tokenBucket(token, ts, model.BucketDay)
}

func (r *Registry) TokenHour(token *model.Token, ts uint64) *model.TokenBucket {
	return r.tokenBucket(token, ts, model.BucketHour)
}

func (r *Registry) tokenBucket(token *model.Token, ts, width uint64) *model.TokenBucket {
	start := model.BucketStart(ts, width)
	key := bucketKey(width, token.Address, start)
	bucket := r.tokens[key]
	if bucket == nil {
		bucket = &model.TokenBucket{
			ID:                         model.BucketID(token.Address, start),
			Token:                      token.Address,
			PeriodStart:                start,
			PeriodSeconds:              width,
			Volume:                     token.Volume,
			VolumeUSD:                  token.VolumeUSD,
			UntrackedVolumeUSD:         token.UntrackedVolumeUSD,
			FeesUSD:                    token.FeesUSD,
			StartingVolume:             token.Volume,
			StartingVolumeUSD:          token.VolumeUSD,
			StartingUntrackedVolumeUSD: token.UntrackedVolumeUSD,
			StartingFeesUSD:            token.FeesUSD,
		}
		r.tokens[key] = bucket
	}

	if bundle := r.bundles.Bundle(); bundle != nil {
		bucket.PriceUSD = token.DerivedETH.Mul(bundle.EthPriceUSD)
	}
	bucket.TVL = token.TotalValueLocked
	bucket.TVLUSD = token.TotalValueLockedUSD
	bucket.TxCount++
	return bucket
}

func (r *Registry) TickDay(tick *model.Tick, ts uint64) *model.TickBucket {
	return r.tickBucket(tick, ts, model.BucketDay)
}

func (r *Registry) TickHour(tick *model.Tick, ts uint64) *model.TickBucket {
	return r.tickBucket(tick, ts, model.BucketHour)
}

func (r *Registry) TickFiveMinute(tick *model.Tick, ts uint64) *model.TickBucket {
	return r.tickBucket(tick, ts, model.BucketFiveMinute)
}

func (r *Registry) tickBucket(tick *model.Tick, ts, width uint64) *model.TickBucket {
	start := model.BucketStart(ts, width)
	key := bucketKey(width, tick.ID, start)
	bucket := r.ticks[key]
	if bucket == nil {
		bucket = &model.TickBucket{
			ID:                   model.BucketID(tick.ID, start),
			Tick:                 tick.ID,
			Pool:                 tick.Pool,
			PeriodStart:          start,
			PeriodSeconds:        width,
			StartingVolumeToken0: tick.VolumeToken0,
			StartingVolumeToken1: tick.VolumeToken1,
			StartingVolumeUSD:    tick.VolumeUSD,
			StartingFeesToken0:   tick.FeesToken0,
			StartingFeesToken1:   tick.FeesToken1,
			StartingFeesUSD:      tick.FeesUSD,
		}
		r.ticks[key] = bucket
	}

	bucket.LiquidityGross = copyBigInt(tick.LiquidityGross)
	bucket.LiquidityNet = copyBigInt(tick.LiquidityNet)
	return bucket
}

// ProtocolBuckets returns all protocol bucket rows created so far.
func (r *Registry) ProtocolBuckets() []*model.ProtocolBucket {
	out := make([]*model.ProtocolBucket, 0, len(r.protocol))
	for _, bucket := range r.protocol {
		out = append(out, bucket)
	}
	return out
}

// PoolBuckets returns all pool bucket rows created so far.
func (r *Registry) PoolBuckets() []*model.PoolBucket {
	out := make([]*model.PoolBucket, 0, len(r.pools))
	for _, bucket := range r.pools {
		out = append(out, bucket)
	}
	return out
}

// TokenBuckets returns all token bucket rows created so far.
func (r *Registry) TokenBuckets() []*model.TokenBucket {
	out := make([]*model.TokenBucket, 0, len(r.tokens))
	for _, bucket := range r.tokens {
		out = append(out, bucket)
	}
	return out
}

// TickBuckets returns all tick bucket rows created so far.
func (r *Registry) TickBuckets() []*model.TickBucket {
	out := make([]*model.TickBucket, 0, len(r.ticks))
	for _, bucket := range r.ticks {
		out = append(out, bucket)
	}
	return out
}

func copyBigInt(val *big.Int) *big.Int {
	if val == nil {
		return nil
	}
	return new(big.Int).Set(val)
}

func copyTick(val *int32) *int32 {
	if val == nil {
		return nil
	}
	tick := *val
	return &tick
}
