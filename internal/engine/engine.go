package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tickscope/internal/model"
)

// DefaultMaxTickCrossings bounds how many tick spacings a single swap may
// resolve. Larger moves (seen on pool initialization swings) skip crossing
// resolution for that event; later events correct the tick state.
const DefaultMaxTickCrossings = 100

// EntityStore is the persistence boundary the engine mutates through.
// Lookups return nil when the record is absent. Only Tick has a
// create-on-demand path inside the engine; every other entity must
// pre-exist or the handler fails for that one event.
type EntityStore interface {
	Bundle() *model.Bundle
	Factory(address string) *model.Factory
	Token(address string) *model.Token
	Pool(address string) *model.Pool
	Tick(id string) *model.Tick
	PutTick(tick *model.Tick)
	PutMint(mint *model.MintRecord)
	PutBurn(burn *model.BurnRecord)
	PutSwap(swap *model.SwapRecord)
}

// Bridge reads authoritative fee-growth accumulators from the pool
// contract. Calls are synchronous and side-effect-free.
type Bridge interface {
	TickFeeGrowthOutside(ctx context.Context, pool string, tickIdx int32) (*big.Int, *big.Int, error)
	FeeGrowthGlobals(ctx context.Context, pool string) (*big.Int, *big.Int, error)
}

// Pricer provides USD/ETH reference pricing and the tracked-volume
// heuristic. Implementations decide which pools count as reliable.
type Pricer interface {
	EthPriceUSD() decimal.Decimal
	EthPerToken(token *model.Token) decimal.Decimal
	TrackedAmountUSD(amount0 decimal.Decimal, token0 *model.Token, amount1 decimal.Decimal, token1 *model.Token) decimal.Decimal
}

// Rollups returns (creating lazily) the current time-bucket record for an
// entity. Providers snapshot starting counters at bucket open and refresh
// latest-state fields; the engine adds deltas to the running fields.
type Rollups interface {
	ProtocolDay(factory *model.Factory, ts uint64) *model.ProtocolBucket
	PoolDay(pool *model.Pool, ts uint64) *model.PoolBucket
	PoolHour(pool *model.Pool, ts uint64) *model.PoolBucket
	PoolFiveMinute(pool *model.Pool, ts uint64) *model.PoolBucket
	TokenDay(token *model.Token, ts uint64) *model.TokenBucket
	TokenHour(token *model.Token, ts uint64) *model.TokenBucket
	TickDay(tick *model.Tick, ts uint64) *model.TickBucket
	TickHour(tick *model.Tick, ts uint64) *model.TickBucket
	TickFiveMinute(tick *model.Tick, ts uint64) *model.TickBucket
}

// Config holds engine-level settings.
type Config struct {
	FactoryAddress string
	// ExcludedPools lists pool addresses whose Swap events are ignored
	// entirely (known-bad pricing).
	ExcludedPools []string
	// MaxTickCrossings overrides DefaultMaxTickCrossings when > 0.
	MaxTickCrossings int32
}

// Engine applies one event at a time against the shared aggregate state.
// Processing is strictly sequential; the engine holds no locks.
type Engine struct {
	cfg      Config
	store    EntityStore
	bridge   Bridge
	pricer   Pricer
	rollups  Rollups
	logger   *zap.Logger
	excluded map[string]struct{}
}

func New(cfg Config, store EntityStore, bridge Bridge, pricer Pricer, rollups Rollups, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTickCrossings <= 0 {
		cfg.MaxTickCrossings = DefaultMaxTickCrossings
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedPools))
	for _, addr := range cfg.ExcludedPools {
		excluded[strings.ToLower(addr)] = struct{}{}
	}

	return &Engine{
		cfg:      cfg,
		store:    store,
		bridge:   bridge,
		pricer:   pricer,
		rollups:  rollups,
		logger:   logger,
		excluded: excluded,
	}
}

// Apply routes one event record to its handler. A returned error means
// this event's update was abandoned; it never poisons later events.
func (e *Engine) Apply(ctx context.Context, record model.EventRecord) error {
	switch strings.ToLower(record.EventName) {
	case "initialize":
		var data model.InitializeEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode initialize: %w", err)
		}
		return e.handleInitialize(record, data)
	case "mint":
		var data model.MintEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode mint: %w", err)
		}
		return e.handleMint(ctx, record, data)
	case "burn":
		var data model.BurnEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode burn: %w", err)
		}
		return e.handleBurn(ctx, record, data)
	case "swap":
		var data model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return e.handleSwap(ctx, record, data)
	case "flash":
		var data model.FlashEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode flash: %w", err)
		}
		return e.handleFlash(ctx, record, data)
	default:
		e.logger.Debug("ignoring event", zap.String("event", record.EventName), zap.String("pool", record.Address))
		return nil
	}
}

func (e *Engine) loadBundle() (*model.Bundle, error) {
	bundle := e.store.Bundle()
	if bundle == nil {
		return nil, fmt.Errorf("bundle %q not found", model.BundleID)
	}
	return bundle, nil
}

func (e *Engine) loadFactory() (*model.Factory, error) {
	factory := e.store.Factory(e.cfg.FactoryAddress)
	if factory == nil {
		return nil, fmt.Errorf("factory %s not found", e.cfg.FactoryAddress)
	}
	return factory, nil
}

func (e *Engine) loadPool(address string) (*model.Pool, error) {
	pool := e.store.Pool(address)
	if pool == nil {
		return nil, fmt.Errorf("pool %s not found", address)
	}
	return pool, nil
}

func (e *Engine) loadToken(address string) (*model.Token, error) {
	token := e.store.Token(address)
	if token == nil {
		return nil, fmt.Errorf("token %s not found", address)
	}
	return token, nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

// recordID builds the txHash#poolTxCount key for immutable event records.
func recordID(txHash string, poolTxCount uint64) string {
	return fmt.Sprintf("%s#%d", txHash, poolTxCount)
}

// orZero normalizes a nil accumulator read to zero so arithmetic on it
// cannot dereference nil.
func orZero(val *big.Int) *big.Int {
	if val == nil {
		return new(big.Int)
	}
	return val
}
