package engine

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var q128 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

// q128Scale fixes the fractional digits kept when unpacking Q128.128
// values, so results do not depend on the importer's global
// decimal.DivisionPrecision.
const q128Scale = 38

// Q128ToDecimal converts a raw Q128.128 fixed-point fee-growth value into
// a decimal fraction. A nil value means "not yet known" and maps to zero.
func Q128ToDecimal(val *big.Int) decimal.Decimal {
	if val == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(val, 0).DivRound(q128, q128Scale)
}
