package slippage

import "triarb/internal/orderbook"

// DefaultMaxPercent is the reference tolerance between expected and
// depth-weighted prices.
const DefaultMaxPercent = 0.2

// AdversePercent returns how much worse fill is than expected, in percent of
// expected. Selling base is worse when the fill is lower, buying base when it
// is higher. Negative values mean the book is better than the quote.
func AdversePercent(side orderbook.Side, expected, fill float64) float64 {
	if expected <= 0 {
		return 0
	}
	var diff float64
	if side == orderbook.BuyBase {
		diff = fill - expected
	} else {
		diff = expected - fill
	}
	return diff / expected * 100
}

// Within reports whether the adverse deviation stays inside maxPercent.
func Within(side orderbook.Side, expected, fill, maxPercent float64) bool {
	return AdversePercent(side, expected, fill) <= maxPercent
}
