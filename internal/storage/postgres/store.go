package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickscope/internal/model"
)

// Store provides Postgres persistence for entities, records and buckets.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertBundle inserts or updates the singleton reference price row.
func (s *Store) UpsertBundle(ctx context.Context, bundle *model.Bundle) error {
	if bundle == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bundles (id, eth_price_usd, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET eth_price_usd = EXCLUDED.eth_price_usd, updated_at = now()
	`, bundle.ID, bundle.EthPriceUSD)
	return err
}

// UpsertFactories inserts or updates factory aggregates.
func (s *Store) UpsertFactories(ctx context.Context, factories []*model.Factory) error {
	if len(factories) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range factories {
		batch.Queue(`
			INSERT INTO factories (
				address, pool_count, tx_count, total_volume_eth, total_volume_usd,
				untracked_volume_usd, total_fees_eth, total_fees_usd,
				total_value_locked_eth, total_value_locked_usd, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
			ON CONFLICT (address)
			DO UPDATE SET
				pool_count = EXCLUDED.pool_count,
				tx_count = EXCLUDED.tx_count,
				total_volume_eth = EXCLUDED.total_volume_eth,
				total_volume_usd = EXCLUDED.total_volume_usd,
				untracked_volume_usd = EXCLUDED.untracked_volume_usd,
				total_fees_eth = EXCLUDED.total_fees_eth,
				total_fees_usd = EXCLUDED.total_fees_usd,
				total_value_locked_eth = EXCLUDED.total_value_locked_eth,
				total_value_locked_usd = EXCLUDED.total_value_locked_usd,
				updated_at = now()
		`,
			f.Address,
			int64(f.PoolCount),
			int64(f.TxCount),
			f.TotalVolumeETH,
			f.TotalVolumeUSD,
			f.UntrackedVolumeUSD,
			f.TotalFeesETH,
			f.TotalFeesUSD,
			f.TotalValueLockedETH,
			f.TotalValueLockedUSD,
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// UpsertPools inserts or updates pool aggregates.
func (s *Store) UpsertPools(ctx context.Context, pools []*model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pools (
				address, token0, token1, fee_tier, tick, sqrt_price, liquidity,
				fee_growth_global0_x128, fee_growth_global1_x128,
				token0_price, token1_price, tx_count,
				volume_token0, volume_token1, volume_usd, untracked_volume_usd, fees_usd,
				total_value_locked_token0, total_value_locked_token1,
				total_value_locked_eth, total_value_locked_usd, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now(),now())
			ON CONFLICT (address)
			DO UPDATE SET
				tick = EXCLUDED.tick,
				sqrt_price = EXCLUDED.sqrt_price,
				liquidity = EXCLUDED.liquidity,
				fee_growth_global0_x128 = EXCLUDED.fee_growth_global0_x128,
				fee_growth_global1_x128 = EXCLUDED.fee_growth_global1_x128,
				token0_price = EXCLUDED.token0_price,
				token1_price = EXCLUDED.token1_price,
				tx_count = EXCLUDED.tx_count,
				volume_token0 = EXCLUDED.volume_token0,
				volume_token1 = EXCLUDED.volume_token1,
				volume_usd = EXCLUDED.volume_usd,
				untracked_volume_usd = EXCLUDED.untracked_volume_usd,
				fees_usd = EXCLUDED.fees_usd,
				total_value_locked_token0 = EXCLUDED.total_value_locked_token0,
				total_value_locked_token1 = EXCLUDED.total_value_locked_token1,
				total_value_locked_eth = EXCLUDED.total_value_locked_eth,
				total_value_locked_usd = EXCLUDED.total_value_locked_usd,
				updated_at = now()
		`,
			p.Address,
			p.Token0,
			p.Token1,
			int64(p.FeeTier),
			p.Tick,
			bigString(p.SqrtPrice),
			bigString(p.Liquidity),
			bigString(p.FeeGrowthGlobal0X128),
			bigString(p.FeeGrowthGlobal1X128),
			p.Token0Price,
			p.Token1Price,
			int64(p.TxCount),
			p.VolumeToken0,
			p.VolumeToken1,
			p.VolumeUSD,
			p.UntrackedVolumeUSD,
			p.FeesUSD,
			p.TotalValueLockedToken0,
			p.TotalValueLockedToken1,
			p.TotalValueLockedETH,
			p.TotalValueLockedUSD,
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// UpsertTokens inserts or updates token aggregates.
func (s *Store) UpsertTokens(ctx context.Context, tokens []*model.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(`
			INSERT INTO tokens (
				address, symbol, decimals, tx_count, volume, volume_usd,
				untracked_volume_usd, fees_usd, total_value_locked,
				total_value_locked_usd, derived_eth, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
			ON CONFLICT (address)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				decimals = EXCLUDED.decimals,
				tx_count = EXCLUDED.tx_count,
				volume = EXCLUDED.volume,
				volume_usd = EXCLUDED.volume_usd,
				untracked_volume_usd = EXCLUDED.untracked_volume_usd,
				fees_usd = EXCLUDED.fees_usd,
				total_value_locked = EXCLUDED.total_value_locked,
				total_value_locked_usd = EXCLUDED.total_value_locked_usd,
				derived_eth = EXCLUDED.derived_eth,
				updated_at = now()
		`,
			t.Address,
			t.Symbol,
			int16(t.Decimals),
			int64(t.TxCount),
			t.Volume,
			t.VolumeUSD,
			t.UntrackedVolumeUSD,
			t.FeesUSD,
			t.TotalValueLocked,
			t.TotalValueLockedUSD,
			t.DerivedETH,
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// UpsertTicks inserts or updates tick records.
func (s *Store) UpsertTicks(ctx context.Context, ticks []*model.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(`
			INSERT INTO ticks (
				id, pool, tick_idx, liquidity_gross, liquidity_net,
				fee_growth_outside0_x128, fee_growth_outside1_x128,
				fees_token0, fees_token1, fees_usd,
				volume_token0, volume_token1, volume_usd,
				created_at_block, created_at_timestamp, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
			ON CONFLICT (id)
			DO UPDATE SET
				liquidity_gross = EXCLUDED.liquidity_gross,
				liquidity_net = EXCLUDED.liquidity_net,
				fee_growth_outside0_x128 = EXCLUDED.fee_growth_outside0_x128,
				fee_growth_outside1_x128 = EXCLUDED.fee_growth_outside1_x128,
				fees_token0 = EXCLUDED.fees_token0,
				fees_token1 = EXCLUDED.fees_token1,
				fees_usd = EXCLUDED.fees_usd,
				volume_token0 = EXCLUDED.volume_token0,
				volume_token1 = EXCLUDED.volume_token1,
				volume_usd = EXCLUDED.volume_usd,
				updated_at = now()
		`,
			t.ID,
			t.Pool,
			t.TickIdx,
			bigString(t.LiquidityGross),
			bigString(t.LiquidityNet),
			bigString(t.FeeGrowthOutside0X128),
			bigString(t.FeeGrowthOutside1X128),
			t.FeesToken0,
			t.FeesToken1,
			t.FeesUSD,
			t.VolumeToken0,
			t.VolumeToken1,
			t.VolumeUSD,
			int64(t.CreatedAtBlock),
			int64(t.CreatedAtTimestamp),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// InsertMints appends mint records. Records are immutable so conflicts
// on replay are ignored.
func (s *Store) InsertMints(ctx context.Context, mints []*model.MintRecord) error {
	if len(mints) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range mints {
		batch.Queue(`
			INSERT INTO mints (
				id, transaction, ts, pool, token0, token1, owner, sender, origin,
				amount, amount0, amount1, amount_usd, tick_lower, tick_upper, log_index
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (id) DO NOTHING
		`,
			m.ID,
			m.Transaction,
			int64(m.Timestamp),
			m.Pool,
			m.Token0,
			m.Token1,
			m.Owner,
			m.Sender,
			m.Origin,
			bigString(m.Amount),
			m.Amount0,
			m.Amount1,
			m.AmountUSD,
			m.TickLower,
			m.TickUpper,
			int64(m.LogIndex),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// InsertBurns appends burn records.
func (s *Store) InsertBurns(ctx context.Context, burns []*model.BurnRecord) error {
	if len(burns) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range burns {
		batch.Queue(`
			INSERT INTO burns (
				id, transaction, ts, pool, token0, token1, owner, origin,
				amount, amount0, amount1, amount_usd, tick_lower, tick_upper, log_index
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id) DO NOTHING
		`,
			b.ID,
			b.Transaction,
			int64(b.Timestamp),
			b.Pool,
			b.Token0,
			b.Token1,
			b.Owner,
			b.Origin,
			bigString(b.Amount),
			b.Amount0,
			b.Amount1,
			b.AmountUSD,
			b.TickLower,
			b.TickUpper,
			int64(b.LogIndex),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// InsertSwaps appends swap records.
func (s *Store) InsertSwaps(ctx context.Context, swaps []*model.SwapRecord) error {
	if len(swaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sw := range swaps {
		batch.Queue(`
			INSERT INTO swaps (
				id, transaction, ts, pool, token0, token1, sender, recipient, origin,
				amount0, amount1, amount_usd, tick, sqrt_price_x96, log_index
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id) DO NOTHING
		`,
			sw.ID,
			sw.Transaction,
			int64(sw.Timestamp),
			sw.Pool,
			sw.Token0,
			sw.Token1,
			sw.Sender,
			sw.Recipient,
			sw.Origin,
			sw.Amount0,
			sw.Amount1,
			sw.AmountUSD,
			sw.Tick,
			bigString(sw.SqrtPriceX96),
			int64(sw.LogIndex),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// UpsertProtocolBuckets inserts or updates protocol rollup rows.
func (s *Store) UpsertProtocolBuckets(ctx context.Context, buckets []*model.ProtocolBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(`
			INSERT INTO protocol_buckets (
				id, period_start, period_seconds, volume_eth, volume_usd,
				fees_usd, tvl_usd, tx_count, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
			ON CONFLICT (id, period_seconds)
			DO UPDATE SET
				volume_eth = EXCLUDED.volume_eth,
				volume_usd = EXCLUDED.volume_usd,
				fees_usd = EXCLUDED.fees_usd,
				tvl_usd = EXCLUDED.tvl_usd,
				tx_count = EXCLUDED.tx_count,
				updated_at = now()
		`,
			b.ID,
			int64(b.PeriodStart),
			int64(b.PeriodSeconds),
			b.VolumeETH.Sub(b.StartingVolumeETH),
			b.VolumeUSD.Sub(b.StartingVolumeUSD),
			b.FeesUSD.Sub(b.StartingFeesUSD),
			b.TVLUSD,
			int64(b.TxCount),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// UpsertPoolBuckets inserts or updates pool rollup rows.
func (s *Store) UpsertPoolBuckets(ctx context.Context, buckets []*model.PoolBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(`
			INSERT INTO pool_buckets (
				id, pool, period_start, period_seconds, liquidity, sqrt_price,
				token0_price, token1_price, tick,
				volume_token0, volume_token1, volume_usd, fees_usd,
				tvl_usd, tx_count, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
			ON CONFLICT (id, period_seconds)
			DO UPDATE SET
				liquidity = EXCLUDED.liquidity,
				sqrt_price = EXCLUDED.sqrt_price,
				token0_price = EXCLUDED.token0_price,
				token1_price = EXCLUDED.token1_price,
				tick = EXCLUDED.tick,
				volume_token0 = EXCLUDED.volume_token0,
				volume_token1 = EXCLUDED.volume_token1,
				volume_usd = EXCLUDED.volume_usd,
				fees_usd = EXCLUDED.fees_usd,
				tvl_usd = EXCLUDED.tvl_usd,
				tx_count = EXCLUDED.tx_count,
				updated_at = now()
		`,
			b.ID,
			b.Pool,
			int64(b.PeriodStart),
			int64(b.PeriodSeconds),
			bigString(b.Liquidity),
			bigString(b.SqrtPrice),
			b.Token0Price,
			b.Token1Price,
			b.Tick,
			b.VolumeToken0.Sub(b.StartingVolumeToken0),
			b.VolumeToken1.Sub(b.StartingVolumeToken1),
			b.VolumeUSD.Sub(b.StartingVolumeUSD),
			b.FeesUSD.Sub(b.StartingFeesUSD),
			b.TVLUSD,
			int64(b.TxCount),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// UpsertTokenBuckets inserts or updates token rollup rows.
func (s *Store) UpsertTokenBuckets(ctx context.Context, buckets []*model.TokenBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(`
			INSERT INTO token_buckets (
				id, token, period_start, period_seconds,
				volume, volume_usd, untracked_volume_usd, fees_usd,
				price_usd, tvl, tvl_usd, tx_count, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
			ON CONFLICT (id, period_seconds)
			DO UPDATE SET
				volume = EXCLUDED.volume,
				volume_usd = EXCLUDED.volume_usd,
				untracked_volume_usd = EXCLUDED.untracked_volume_usd,
				fees_usd = EXCLUDED.fees_usd,
				price_usd = EXCLUDED.price_usd,
				tvl = EXCLUDED.tvl,
				tvl_usd = EXCLUDED.tvl_usd,
				tx_count = EXCLUDED.tx_count,
				updated_at = now()
		`,
			b.ID,
			b.Token,
			int64(b.PeriodStart),
			int64(b.PeriodSeconds),
			b.Volume.Sub(b.StartingVolume),
			b.VolumeUSD.Sub(b.StartingVolumeUSD),
			b.UntrackedVolumeUSD.Sub(b.StartingUntrackedVolumeUSD),
			b.FeesUSD.Sub(b.StartingFeesUSD),
			b.PriceUSD,
			b.TVL,
			b.TVLUSD,
			int64(b.TxCount),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// UpsertTickBuckets inserts or updates tick rollup rows. Delta fields are
// already bucket-local and stored as-is.
func (s *Store) UpsertTickBuckets(ctx context.Context, buckets []*model.TickBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(`
			INSERT INTO tick_buckets (
				id, tick, pool, period_start, period_seconds,
				liquidity_gross, liquidity_net,
				volume_token0, volume_token1, volume_usd,
				fees_token0, fees_token1, fees_usd, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
			ON CONFLICT (id, period_seconds)
			DO UPDATE SET
				liquidity_gross = EXCLUDED.liquidity_gross,
				liquidity_net = EXCLUDED.liquidity_net,
				volume_token0 = EXCLUDED.volume_token0,
				volume_token1 = EXCLUDED.volume_token1,
				volume_usd = EXCLUDED.volume_usd,
				fees_token0 = EXCLUDED.fees_token0,
				fees_token1 = EXCLUDED.fees_token1,
				fees_usd = EXCLUDED.fees_usd,
				updated_at = now()
		`,
			b.ID,
			b.Tick,
			b.Pool,
			int64(b.PeriodStart),
			int64(b.PeriodSeconds),
			bigString(b.LiquidityGross),
			bigString(b.LiquidityNet),
			b.VolumeToken0,
			b.VolumeToken1,
			b.VolumeUSD,
			b.FeesToken0,
			b.FeesToken1,
			b.FeesUSD,
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}
