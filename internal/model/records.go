package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MintRecord is the immutable point-in-time record of a handled Mint,
// keyed by txHash#poolTxCount. Never mutated after creation.
type MintRecord struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Timestamp   uint64          `json:"timestamp"`
	Pool        string          `json:"pool"`
	Token0      string          `json:"token0"`
	Token1      string          `json:"token1"`
	Owner       string          `json:"owner"`
	Sender      string          `json:"sender"`
	Origin      string          `json:"origin"`
	Amount      *big.Int        `json:"amount"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TickLower   int32           `json:"tick_lower"`
	TickUpper   int32           `json:"tick_upper"`
	LogIndex    uint64          `json:"log_index"`
}

// BurnRecord mirrors MintRecord for Burn events.
type BurnRecord struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Timestamp   uint64          `json:"timestamp"`
	Pool        string          `json:"pool"`
	Token0      string          `json:"token0"`
	Token1      string          `json:"token1"`
	Owner       string          `json:"owner"`
	Origin      string          `json:"origin"`
	Amount      *big.Int        `json:"amount"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TickLower   int32           `json:"tick_lower"`
	TickUpper   int32           `json:"tick_upper"`
	LogIndex    uint64          `json:"log_index"`
}

// SwapRecord captures a handled Swap with its post-swap tick and price.
type SwapRecord struct {
	ID           string          `json:"id"`
	Transaction  string          `json:"transaction"`
	Timestamp    uint64          `json:"timestamp"`
	Pool         string          `json:"pool"`
	Token0       string          `json:"token0"`
	Token1       string          `json:"token1"`
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	Origin       string          `json:"origin"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	Tick         int32           `json:"tick"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96"`
	LogIndex     uint64          `json:"log_index"`
}
