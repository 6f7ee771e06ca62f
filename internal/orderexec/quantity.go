package orderexec

import "github.com/shopspring/decimal"

// RoundDown truncates qty to a whole multiple of step and returns the
// remainder. A non-positive step leaves qty untouched.
func RoundDown(qty, step float64) (rounded, leftover float64) {
	if qty <= 0 {
		return 0, 0
	}
	if step <= 0 {
		return qty, 0
	}
	q := decimal.NewFromFloat(qty)
	s := decimal.NewFromFloat(step)
	r := q.Div(s).Floor().Mul(s)
	if r.GreaterThan(q) {
		// Div rounds at 16 places and can land on the next multiple
		r = r.Sub(s)
	}
	rounded, _ = r.Float64()
	leftover, _ = q.Sub(r).Float64()
	return rounded, leftover
}

// RoundUp rounds price up to the next multiple of tick.
func RoundUp(price, tick float64) float64 {
	if tick <= 0 || price <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	r, _ := p.Div(t).Ceil().Mul(t).Float64()
	return r
}
