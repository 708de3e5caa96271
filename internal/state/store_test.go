package state

import (
	"testing"

	"tickscope/internal/model"
)

func TestStoreLookupsAreCaseInsensitive(t *testing.T) {
	store := NewStore()

	store.PutPool(model.NewPool("0xABCDEF", "0xT0", "0xT1", 500))
	if store.Pool("0xabcdef") == nil {
		t.Fatalf("pool lookup should ignore case")
	}

	store.PutToken(model.NewToken("0xT0", 18))
	if store.Token("0xt0") == nil {
		t.Fatalf("token lookup should ignore case")
	}

	store.PutTick(model.NewTick("0xABCDEF", -60, 1, 1))
	if store.Tick(model.TickID("0xabcdef", -60)) == nil {
		t.Fatalf("tick lookup should ignore case")
	}
}

func TestStoreReturnsLiveHandles(t *testing.T) {
	store := NewStore()
	store.PutFactory(model.NewFactory("0xfactory"))

	store.Factory("0xfactory").TxCount++
	if store.Factory("0xfactory").TxCount != 1 {
		t.Fatalf("mutation through lookup handle was lost")
	}
}

func TestDrainRecords(t *testing.T) {
	store := NewStore()

	store.PutMint(&model.MintRecord{ID: "0xa#1"})
	store.PutMint(&model.MintRecord{ID: "0xa#2"})
	store.PutSwap(&model.SwapRecord{ID: "0xb#1"})

	mints := store.DrainMints()
	if len(mints) != 2 {
		t.Fatalf("drained mints = %d, want 2", len(mints))
	}
	if len(store.DrainMints()) != 0 {
		t.Fatalf("second drain should be empty")
	}
	if len(store.DrainSwaps()) != 1 {
		t.Fatalf("swap drain lost records")
	}
	if len(store.DrainBurns()) != 0 {
		t.Fatalf("burn drain should be empty")
	}
}
