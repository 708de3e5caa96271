package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tickscope/internal/model"
)

// PoolSource is the read-only slice of the entity store the pricer needs.
type PoolSource interface {
	Pool(address string) *model.Pool
	Token(address string) *model.Token
}

// Config lists the allow-listed assets the tracked-volume heuristic
// trusts.
type Config struct {
	// WrappedNative is the wrapped ETH token address; its derived price
	// is 1 by definition.
	WrappedNative string
	// Stablecoins are USD-pegged tokens; their derived price is the
	// inverse of the reference ETH price.
	Stablecoins []string
	// Whitelist are tokens whose swap legs count as tracked volume.
	// WrappedNative and Stablecoins are implicitly whitelisted.
	Whitelist []string
	// ReferencePool is the stable/native pool the USD price of ETH is
	// read from.
	ReferencePool string
}

// minimumEthLocked is the floor of ETH locked on the whitelisted side a
// pool must hold before it can set a token's derived price.
var minimumEthLocked = decimal.New(60, 0)

// WhitelistPricer prices tokens against an allow list, reading current
// pool state from the entity store.
type WhitelistPricer struct {
	cfg         Config
	source      PoolSource
	logger      *zap.Logger
	stables     map[string]struct{}
	whitelisted map[string]struct{}
	// whitelistPools maps a token address to the pools pairing it with a
	// whitelisted counterpart, filled by RegisterPool.
	whitelistPools map[string][]string
}

func NewWhitelistPricer(cfg Config, source PoolSource, logger *zap.Logger) *WhitelistPricer {
	if logger == nil {
		logger = zap.NewNop()
	}

	stables := make(map[string]struct{}, len(cfg.Stablecoins))
	whitelisted := make(map[string]struct{}, len(cfg.Whitelist)+len(cfg.Stablecoins)+1)
	for _, addr := range cfg.Stablecoins {
		stables[strings.ToLower(addr)] = struct{}{}
		whitelisted[strings.ToLower(addr)] = struct{}{}
	}
	for _, addr := range cfg.Whitelist {
		whitelisted[strings.ToLower(addr)] = struct{}{}
	}
	if cfg.WrappedNative != "" {
		whitelisted[strings.ToLower(cfg.WrappedNative)] = struct{}{}
	}

	return &WhitelistPricer{
		cfg:            cfg,
		source:         source,
		logger:         logger,
		stables:        stables,
		whitelisted:    whitelisted,
		whitelistPools: make(map[string][]string),
	}
}

// RegisterPool records the pool as a pricing candidate for each side whose
// counterpart is whitelisted. Call once per pool, when it is first seen.
func (p *WhitelistPricer) RegisterPool(pool *model.Pool) {
	if pool == nil {
		return
	}
	if p.isWhitelisted(pool.Token1) {
		addr := strings.ToLower(pool.Token0)
		p.whitelistPools[addr] = append(p.whitelistPools[addr], pool.Address)
	}
	if p.isWhitelisted(pool.Token0) {
		addr := strings.ToLower(pool.Token1)
		p.whitelistPools[addr] = append(p.whitelistPools[addr], pool.Address)
	}
}

// EthPriceUSD reads the USD price of ETH from the configured reference
// pool. Zero until that pool has a price.
func (p *WhitelistPricer) EthPriceUSD() decimal.Decimal {
	pool := p.source.Pool(p.cfg.ReferencePool)
	if pool == nil {
		return decimal.Zero
	}
	if p.isStable(pool.Token0) {
		return pool.Token0Price
	}
	return pool.Token1Price
}

// EthPerToken returns the token's price expressed in ETH. The wrapped
// native token is 1 by definition and stablecoins invert the reference
// price. Every other token is priced off the registered pool holding the
// most ETH on its whitelisted side; if no pool clears the minimum-locked
// floor the last derived value stands.
func (p *WhitelistPricer) EthPerToken(token *model.Token) decimal.Decimal {
	addr := strings.ToLower(token.Address)
	if addr == strings.ToLower(p.cfg.WrappedNative) {
		return one
	}
	if p.isStable(token.Address) {
		return SafeDiv(one, p.EthPriceUSD())
	}

	largest := decimal.Zero
	derived := token.DerivedETH
	for _, poolAddr := range p.whitelistPools[addr] {
		pool := p.source.Pool(poolAddr)
		if pool == nil || pool.Liquidity.Sign() <= 0 {
			continue
		}
		if strings.EqualFold(pool.Token0, token.Address) {
			counter := p.source.Token(pool.Token1)
			if counter == nil {
				continue
			}
			ethLocked := pool.TotalValueLockedToken1.Mul(counter.DerivedETH)
			if ethLocked.GreaterThan(largest) && ethLocked.GreaterThan(minimumEthLocked) {
				largest = ethLocked
				derived = pool.Token1Price.Mul(counter.DerivedETH)
			}
		} else {
			counter := p.source.Token(pool.Token0)
			if counter == nil {
				continue
			}
			ethLocked := pool.TotalValueLockedToken0.Mul(counter.DerivedETH)
			if ethLocked.GreaterThan(largest) && ethLocked.GreaterThan(minimumEthLocked) {
				largest = ethLocked
				derived = pool.Token0Price.Mul(counter.DerivedETH)
			}
		}
	}
	return derived
}

// TrackedAmountUSD values a swap's two legs through the allow list: both
// sides whitelisted sums both legs, one side doubles that leg, neither
// side yields zero (the volume is then only counted as untracked).
func (p *WhitelistPricer) TrackedAmountUSD(amount0 decimal.Decimal, token0 *model.Token, amount1 decimal.Decimal, token1 *model.Token) decimal.Decimal {
	ethPrice := p.EthPriceUSD()
	price0USD := token0.DerivedETH.Mul(ethPrice)
	price1USD := token1.DerivedETH.Mul(ethPrice)

	wl0 := p.isWhitelisted(token0.Address)
	wl1 := p.isWhitelisted(token1.Address)

	switch {
	case wl0 && wl1:
		return amount0.Mul(price0USD).Add(amount1.Mul(price1USD))
	case wl0:
		return amount0.Mul(price0USD).Mul(decimal.New(2, 0))
	case wl1:
		return amount1.Mul(price1USD).Mul(decimal.New(2, 0))
	default:
		return decimal.Zero
	}
}

func (p *WhitelistPricer) isStable(address string) bool {
	_, ok := p.stables[strings.ToLower(address)]
	return ok
}

func (p *WhitelistPricer) isWhitelisted(address string) bool {
	_, ok := p.whitelisted[strings.ToLower(address)]
	return ok
}
