package domain

import "github.com/shopspring/decimal"

// ReturnPrecision is the number of decimals kept on emitted returns.
const ReturnPrecision = 4

// Round rounds x to places decimals, halves away from zero.
func Round(x float64, places int) float64 {
	f, _ := decimal.NewFromFloat(x).Round(int32(places)).Float64()
	return f
}
