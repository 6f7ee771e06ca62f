package orderbook

type Level struct{ Price, Qty float64 }

// Depth is an L2 snapshot, best price first on both sides.
type Depth struct {
	Bids []Level // sorted desc by price
	Asks []Level // sorted asc by price
}

// Side selects which half of the book a fill consumes.
type Side int

const (
	// SellBase walks the bids (base -> quote).
	SellBase Side = iota
	// BuyBase walks the asks (quote -> base).
	BuyBase
)

func (d Depth) levels(side Side) []Level {
	if side == BuyBase {
		return d.Asks
	}
	return d.Bids
}

// AverageFillPrice walks the book from the best level outward, consuming up to
// qty base units, and returns the quantity-weighted average price of the
// consumed slices. When the book is thinner than qty the average covers what
// is available. qty <= 0 averages the whole side.
func (d Depth) AverageFillPrice(side Side, qty float64) (avg float64, filled float64, ok bool) {
	var cost float64
	for _, lvl := range d.levels(side) {
		if lvl.Qty <= 0 || lvl.Price <= 0 {
			continue
		}
		use := lvl.Qty
		if qty > 0 {
			use = min(qty-filled, lvl.Qty)
		}
		if use <= 0 {
			break
		}
		cost += use * lvl.Price
		filled += use
		if qty > 0 && filled >= qty {
			break
		}
	}
	if filled <= 0 {
		return 0, 0, false
	}
	return cost / filled, filled, true
}

// Available sums the quantity on one side of the book.
func (d Depth) Available(side Side) float64 {
	var total float64
	for _, lvl := range d.levels(side) {
		total += lvl.Qty
	}
	return total
}
