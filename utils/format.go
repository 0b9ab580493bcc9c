package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatTokenBalance renders a smallest-unit balance as a decimal
// string with at most maxDecimals fractional digits, truncating rather
// than rounding so a display value never overstates the balance.
func FormatTokenBalance(balance *big.Int, decimals, maxDecimals int) string {
	if balance == nil {
		return "0"
	}
	d := decimal.NewFromBigInt(balance, -int32(decimals))
	return d.Truncate(int32(maxDecimals)).String()
}
