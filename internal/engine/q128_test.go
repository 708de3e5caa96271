package engine

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestQ128ToDecimal(t *testing.T) {
	unit := new(big.Int).Lsh(big.NewInt(1), 128)

	cases := []struct {
		name string
		in   *big.Int
		want string
	}{
		{"nil", nil, "0"},
		{"zero", big.NewInt(0), "0"},
		{"one", unit, "1"},
		{"three", new(big.Int).Mul(unit, big.NewInt(3)), "3"},
		{"half", new(big.Int).Rsh(unit, 1), "0.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Q128ToDecimal(tc.in)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("Q128ToDecimal = %s, want %s", got.String(), tc.want)
			}
		})
	}
}
