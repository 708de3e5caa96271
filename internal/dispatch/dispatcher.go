package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tickscope/internal/engine"
	"tickscope/internal/model"
	"tickscope/internal/rollup"
	"tickscope/internal/state"
	"tickscope/internal/storage"
	"tickscope/internal/storage/postgres"
)

// DecimalsSource resolves token decimals when event metadata omits them.
type DecimalsSource interface {
	ERC20Decimals(ctx context.Context, token string) (uint8, error)
}

// PoolRegistry is notified of every newly seeded pool. The pricer uses it
// to track which pools can price a token.
type PoolRegistry interface {
	RegisterPool(pool *model.Pool)
}

// TokenDecimalsCache memoizes decimals lookups per token address.
type TokenDecimalsCache struct {
	mu      sync.RWMutex
	entries map[string]uint8
}

func NewTokenDecimalsCache() *TokenDecimalsCache {
	return &TokenDecimalsCache{entries: make(map[string]uint8)}
}

func (c *TokenDecimalsCache) Get(token string) (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	decimals, ok := c.entries[strings.ToLower(token)]
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(token string, decimals uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToLower(token)] = decimals
}

// Config controls dispatch behavior.
type Config struct {
	FactoryAddress string
	BatchSize      int
	// ResumeFrom forces reprocessing from this timestamp, overriding the
	// state store.
	ResumeFrom   uint64
	StateStore   StateStore
	PoolRegistry PoolRegistry
}

// Dispatcher replays decoded events through the engine in file order and
// flushes dirty state to Postgres in batches.
type Dispatcher struct {
	cfg      Config
	engine   *engine.Engine
	entities *state.Store
	rollups  *rollup.Registry
	db       *postgres.Store
	decimals DecimalsSource
	cache    *TokenDecimalsCache
	logger   *zap.Logger
}

func NewDispatcher(cfg Config, eng *engine.Engine, entities *state.Store, rollups *rollup.Registry, db *postgres.Store, decimals DecimalsSource, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}

	return &Dispatcher{
		cfg:      cfg,
		engine:   eng,
		entities: entities,
		rollups:  rollups,
		db:       db,
		decimals: decimals,
		cache:    NewTokenDecimalsCache(),
		logger:   logger,
	}
}

// Run consumes the source until exhaustion. Per-event handler errors are
// logged and counted but never abort the replay; flush errors do.
func (d *Dispatcher) Run(ctx context.Context, source storage.EventSource) error {
	if d.engine == nil {
		return fmt.Errorf("engine is nil")
	}
	if d.entities == nil {
		return fmt.Errorf("entity store is nil")
	}

	startTs, err := d.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	d.seedGlobals()

	maxTs := startTs
	var total, handled, skipped, failed int
	sinceFlush := 0

	for {
		record, err := source.Next(ctx)
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if record == nil {
			break
		}
		total++

		if record.Timestamp <= startTs {
			skipped++
			continue
		}

		if err := d.seedPool(ctx, record); err != nil {
			failed++
			d.logger.Warn("seed pool",
				zap.String("pool", record.Address),
				zap.Error(err),
			)
			continue
		}

		if err := d.engine.Apply(ctx, *record); err != nil {
			failed++
			d.logger.Warn("apply event",
				zap.String("event", record.EventName),
				zap.String("pool", record.Address),
				zap.String("tx", record.TxHash),
				zap.Error(err),
			)
			continue
		}
		handled++
		sinceFlush++

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if sinceFlush >= d.cfg.BatchSize {
			if err := d.flush(ctx); err != nil {
				return err
			}
			if err := d.saveState(ctx, maxTs); err != nil {
				return err
			}
			sinceFlush = 0
		}
	}

	if err := d.flush(ctx); err != nil {
		return err
	}
	if err := d.saveState(ctx, maxTs); err != nil {
		return err
	}

	d.logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("handled", handled),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Uint64("last_ts", maxTs),
	)

	return nil
}

func (d *Dispatcher) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if d.cfg.ResumeFrom > 0 {
		return d.cfg.ResumeFrom - 1, nil
	}
	if d.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := d.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (d *Dispatcher) saveState(ctx context.Context, ts uint64) error {
	if d.cfg.StateStore == nil {
		return nil
	}
	return d.cfg.StateStore.Save(ctx, ts)
}

func (d *Dispatcher) seedGlobals() {
	if d.entities.Bundle() == nil {
		d.entities.SetBundle(model.NewBundle())
	}
	if d.entities.Factory(d.cfg.FactoryAddress) == nil {
		d.entities.PutFactory(model.NewFactory(d.cfg.FactoryAddress))
	}
}

// seedPool creates Pool and Token records from the event's metadata before
// the engine first sees the pool.
func (d *Dispatcher) seedPool(ctx context.Context, record *model.EventRecord) error {
	if d.entities.Pool(record.Address) != nil {
		return nil
	}

	meta := record.PoolMeta
	if meta.Token0 == "" || meta.Token1 == "" {
		return fmt.Errorf("missing pool metadata for %s", record.Address)
	}

	if d.entities.Token(meta.Token0) == nil {
		decimals, err := d.tokenDecimals(ctx, meta.Token0, meta.Token0Decimals)
		if err != nil {
			return err
		}
		d.entities.PutToken(model.NewToken(meta.Token0, decimals))
	}
	if d.entities.Token(meta.Token1) == nil {
		decimals, err := d.tokenDecimals(ctx, meta.Token1, meta.Token1Decimals)
		if err != nil {
			return err
		}
		d.entities.PutToken(model.NewToken(meta.Token1, decimals))
	}

	pool := model.NewPool(record.Address, meta.Token0, meta.Token1, meta.Fee)
	d.entities.PutPool(pool)
	if d.cfg.PoolRegistry != nil {
		d.cfg.PoolRegistry.RegisterPool(pool)
	}

	factory := d.entities.Factory(d.cfg.FactoryAddress)
	if factory != nil {
		factory.PoolCount++
	}

	return nil
}

func (d *Dispatcher) tokenDecimals(ctx context.Context, token string, fromMeta uint8) (uint8, error) {
	if fromMeta > 0 {
		return fromMeta, nil
	}
	if cached, ok := d.cache.Get(token); ok {
		return cached, nil
	}
	if d.decimals == nil {
		// No metadata and no chain access; raw units pass through.
		return 0, nil
	}
	if !common.IsHexAddress(token) {
		return 0, fmt.Errorf("invalid token address: %s", token)
	}
	decimals, err := d.decimals.ERC20Decimals(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("token decimals %s: %w", token, err)
	}
	d.cache.Set(token, decimals)
	return decimals, nil
}

func (d *Dispatcher) flush(ctx context.Context) error {
	if d.db == nil {
		return nil
	}

	if err := d.db.UpsertBundle(ctx, d.entities.Bundle()); err != nil {
		return fmt.Errorf("flush bundle: %w", err)
	}
	if err := d.db.UpsertFactories(ctx, d.entities.Factories()); err != nil {
		return fmt.Errorf("flush factories: %w", err)
	}
	if err := d.db.UpsertPools(ctx, d.entities.Pools()); err != nil {
		return fmt.Errorf("flush pools: %w", err)
	}
	if err := d.db.UpsertTokens(ctx, d.entities.Tokens()); err != nil {
		return fmt.Errorf("flush tokens: %w", err)
	}
	if err := d.db.UpsertTicks(ctx, d.entities.Ticks()); err != nil {
		return fmt.Errorf("flush ticks: %w", err)
	}

	if err := d.db.InsertMints(ctx, d.entities.DrainMints()); err != nil {
		return fmt.Errorf("flush mints: %w", err)
	}
	if err := d.db.InsertBurns(ctx, d.entities.DrainBurns()); err != nil {
		return fmt.Errorf("flush burns: %w", err)
	}
	if err := d.db.InsertSwaps(ctx, d.entities.DrainSwaps()); err != nil {
		return fmt.Errorf("flush swaps: %w", err)
	}

	if d.rollups == nil {
		return nil
	}
	if err := d.db.UpsertProtocolBuckets(ctx, d.rollups.ProtocolBuckets()); err != nil {
		return fmt.Errorf("flush protocol buckets: %w", err)
	}
	if err := d.db.UpsertPoolBuckets(ctx, d.rollups.PoolBuckets()); err != nil {
		return fmt.Errorf("flush pool buckets: %w", err)
	}
	if err := d.db.UpsertTokenBuckets(ctx, d.rollups.TokenBuckets()); err != nil {
		return fmt.Errorf("flush token buckets: %w", err)
	}
	if err := d.db.UpsertTickBuckets(ctx, d.rollups.TickBuckets()); err != nil {
		return fmt.Errorf("flush tick buckets: %w", err)
	}

	return nil
}
