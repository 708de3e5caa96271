package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"tickscope/internal/model"
)

// priceScale fixes the fractional digits kept for price and ratio
// divisions.
const priceScale = 18

var (
	one  = decimal.New(1, 0)
	q192 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)
)

// ConvertTokenToDecimal scales a raw integer token amount by the token's
// precision.
func ConvertTokenToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// SafeDiv divides a by b, returning zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, priceScale)
}

// ExponentToDecimal returns 10^decimals as a decimal.
func ExponentToDecimal(decimals uint8) decimal.Decimal {
	return decimal.New(1, int32(decimals))
}

// SqrtPriceX96ToTokenPrices derives both token prices from a pool's
// post-swap sqrt price. Returns (token0Price, token1Price).
func SqrtPriceX96ToTokenPrices(sqrtPriceX96 *big.Int, token0, token1 *model.Token) (decimal.Decimal, decimal.Decimal) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero, decimal.Zero
	}

	num := decimal.NewFromBigInt(new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96), 0)
	price1 := num.DivRound(q192, priceScale).
		Mul(ExponentToDecimal(token0.Decimals)).
		DivRound(ExponentToDecimal(token1.Decimals), priceScale)
	price0 := SafeDiv(one, price1)

	return price0, price1
}
