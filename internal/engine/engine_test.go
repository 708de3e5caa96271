package engine

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"tickscope/internal/model"
	"tickscope/internal/rollup"
	"tickscope/internal/state"
)

const (
	testFactory = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
	testPool    = "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8"
	testToken0  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	testToken1  = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

type stubBridge struct {
	tickCalls int
	outside0  *big.Int
	outside1  *big.Int
	global0   *big.Int
	global1   *big.Int
}

func (b *stubBridge) TickFeeGrowthOutside(_ context.Context, _ string, _ int32) (*big.Int, *big.Int, error) {
	b.tickCalls++
	return copyBig(b.outside0), copyBig(b.outside1), nil
}

func (b *stubBridge) FeeGrowthGlobals(_ context.Context, _ string) (*big.Int, *big.Int, error) {
	return copyBig(b.global0), copyBig(b.global1), nil
}

func copyBig(val *big.Int) *big.Int {
	if val == nil {
		return nil
	}
	return new(big.Int).Set(val)
}

type stubPricer struct {
	ethPrice decimal.Decimal
	tracked  decimal.Decimal
}

func (p *stubPricer) EthPriceUSD() decimal.Decimal {
	return p.ethPrice
}

func (p *stubPricer) EthPerToken(token *model.Token) decimal.Decimal {
	return token.DerivedETH
}

func (p *stubPricer) TrackedAmountUSD(_ decimal.Decimal, _ *model.Token, _ decimal.Decimal, _ *model.Token) decimal.Decimal {
	return p.tracked
}

type testEnv struct {
	engine  *Engine
	store   *state.Store
	rollups *rollup.Registry
	bridge  *stubBridge
	pricer  *stubPricer
}

func newTestEnv(t *testing.T, cfg Config, feeTier uint32) *testEnv {
	t.Helper()

	if cfg.FactoryAddress == "" {
		cfg.FactoryAddress = testFactory
	}

	store := state.NewStore()
	store.SetBundle(model.NewBundle())
	store.PutFactory(model.NewFactory(cfg.FactoryAddress))
	store.PutToken(model.NewToken(testToken0, 0))
	store.PutToken(model.NewToken(testToken1, 0))
	store.PutPool(model.NewPool(testPool, testToken0, testToken1, feeTier))

	bridge := &stubBridge{}
	pricer := &stubPricer{}
	rollups := rollup.NewRegistry(store)
	eng := New(cfg, store, bridge, pricer, rollups, nil)

	return &testEnv{
		engine:  eng,
		store:   store,
		rollups: rollups,
		bridge:  bridge,
		pricer:  pricer,
	}
}

func (env *testEnv) setPoolTick(tick int32) {
	pool := env.store.Pool(testPool)
	pool.Tick = &tick
}

func makeRecord(t *testing.T, event string, ts uint64, data interface{}) model.EventRecord {
	t.Helper()

	decoded, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}

	return model.EventRecord{
		ChainID:     1,
		BlockNumber: 17000000,
		TxHash:      "0xabc",
		LogIndex:    3,
		Address:     testPool,
		EventName:   event,
		Timestamp:   ts,
		Origin:      "0xorigin",
		Decoded:     decoded,
	}
}

func applyEvent(t *testing.T, env *testEnv, event string, ts uint64, data interface{}) {
	t.Helper()
	if err := env.engine.Apply(context.Background(), makeRecord(t, event, ts, data)); err != nil {
		t.Fatalf("apply %s: %v", event, err)
	}
}

func assertDecimalEq(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", label, got.String(), want)
	}
}
