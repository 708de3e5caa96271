package state

import (
	"strings"

	"tickscope/internal/model"
)

// Store is the in-memory entity store the engine mutates through.
// Lookups return live, mutable handles; there is no re-fetch semantics.
// Single-owner: the sequential dispatcher is the only writer.
type Store struct {
	bundle    *model.Bundle
	factories map[string]*model.Factory
	tokens    map[string]*model.Token
	pools     map[string]*model.Pool
	ticks     map[string]*model.Tick
	mints     []*model.MintRecord
	burns     []*model.BurnRecord
	swaps     []*model.SwapRecord
}

func NewStore() *Store {
	return &Store{
		factories: make(map[string]*model.Factory),
		tokens:    make(map[string]*model.Token),
		pools:     make(map[string]*model.Pool),
		ticks:     make(map[string]*model.Tick),
	}
}

func key(id string) string {
	return strings.ToLower(id)
}

func (s *Store) Bundle() *model.Bundle {
	return s.bundle
}

func (s *Store) SetBundle(bundle *model.Bundle) {
	s.bundle = bundle
}

func (s *Store) Factory(address string) *model.Factory {
	return s.factories[key(address)]
}

func (s *Store) PutFactory(factory *model.Factory) {
	s.factories[key(factory.Address)] = factory
}

func (s *Store) Token(address string) *model.Token {
	return s.tokens[key(address)]
}

func (s *Store) PutToken(token *model.Token) {
	s.tokens[key(token.Address)] = token
}

func (s *Store) Pool(address string) *model.Pool {
	return s.pools[key(address)]
}

func (s *Store) PutPool(pool *model.Pool) {
	s.pools[key(pool.Address)] = pool
}

func (s *Store) Tick(id string) *model.Tick {
	return s.ticks[key(id)]
}

func (s *Store) PutTick(tick *model.Tick) {
	s.ticks[key(tick.ID)] = tick
}

func (s *Store) PutMint(mint *model.MintRecord) {
	s.mints = append(s.mints, mint)
}

func (s *Store) PutBurn(burn *model.BurnRecord) {
	s.burns = append(s.burns, burn)
}

func (s *Store) PutSwap(swap *model.SwapRecord) {
	s.swaps = append(s.swaps, swap)
}

// Pools returns every pool record.
func (s *Store) Pools() []*model.Pool {
	out := make([]*model.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		out = append(out, pool)
	}
	return out
}

// Tokens returns every token record.
func (s *Store) Tokens() []*model.Token {
	out := make([]*model.Token, 0, len(s.tokens))
	for _, token := range s.tokens {
		out = append(out, token)
	}
	return out
}

// Factories returns every factory record.
func (s *Store) Factories() []*model.Factory {
	out := make([]*model.Factory, 0, len(s.factories))
	for _, factory := range s.factories {
		out = append(out, factory)
	}
	return out
}

// Ticks returns every tick record.
func (s *Store) Ticks() []*model.Tick {
	out := make([]*model.Tick, 0, len(s.ticks))
	for _, tick := range s.ticks {
		out = append(out, tick)
	}
	return out
}

// DrainMints returns the mint records appended since the last drain.
func (s *Store) DrainMints() []*model.MintRecord {
	out := s.mints
	s.mints = nil
	return out
}

// DrainBurns returns the burn records appended since the last drain.
func (s *Store) DrainBurns() []*model.BurnRecord {
	out := s.burns
	s.burns = nil
	return out
}

// DrainSwaps returns the swap records appended since the last drain.
func (s *Store) DrainSwaps() []*model.SwapRecord {
	out := s.swaps
	s.swaps = nil
	return out
}
