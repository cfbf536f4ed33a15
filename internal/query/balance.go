package query

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RenderWad formats a WAD integer as a human decimal string: the 18
// fractional digits shift out and trailing zeros drop, so 7000e18 renders
// as "7000" and 5e17 as "0.5".
func RenderWad(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -18).String()
}
