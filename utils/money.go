package utils

import (
	"github.com/shopspring/decimal"
)

// AmountPlaces is the precision amounts are stored with (USDT style, 6 places).
const AmountPlaces = 6

var hundred = decimal.NewFromInt(100)

// PercentOf returns base * percent / 100 rounded to AmountPlaces.
func PercentOf(base, percent float64) decimal.Decimal {
	return PercentOfAmount(decimal.NewFromFloat(base), percent)
}

// PercentOfAmount is PercentOf for a base that is already a decimal amount.
func PercentOfAmount(base decimal.Decimal, percent float64) decimal.Decimal {
	return base.Mul(decimal.NewFromFloat(percent)).Div(hundred).Round(AmountPlaces)
}

// ToAmount converts a decimal into the float64 stored in MongoDB.
func ToAmount(d decimal.Decimal) float64 {
	f, _ := d.Round(AmountPlaces).Float64()
	return f
}

// SumPercents adds percentages without float drift.
func SumPercents(percents ...float64) decimal.Decimal {
	total := decimal.Zero
	for _, p := range percents {
		total = total.Add(decimal.NewFromFloat(p))
	}
	return total
}
