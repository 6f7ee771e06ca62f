package strategy

import (
	"sort"

	"triarb/internal/graph"
	"triarb/internal/orderbook"
)

// TradeDirection is the side of one leg relative to the pair.
type TradeDirection string

const (
	BaseToQuote TradeDirection = "base_to_quote"
	QuoteToBase TradeDirection = "quote_to_base"
)

// Direction is the traversal of the cycle: forward starts from pair A's base,
// reverse from its quote.
type Direction string

const (
	Forward Direction = "forward"
	Reverse Direction = "reverse"
)

// DefaultMinProfitPercent is the floor a direction has to clear to be reported.
const DefaultMinProfitPercent = -0.2

// SurfaceResult is the best directional walk of a triangle at one point in time.
type SurfaceResult struct {
	Triangle      graph.Triangular  `json:"triangle"`
	Swaps         [4]string         `json:"swaps"`
	Contracts     [3]string         `json:"contracts"`
	Directions    [3]TradeDirection `json:"directions"`
	Acquired      [3]float64        `json:"acquired"`
	Rates         [3]float64        `json:"rates"`
	Liquidity     [3]float64        `json:"liquidity"` // leg input units available at best price
	ProfitPercent float64           `json:"profit_percent"`
	Direction     Direction         `json:"direction"`
}

// ContractsDescription identifies the opportunity the result belongs to.
func (r SurfaceResult) ContractsDescription() string {
	return graph.ContractsKey(r.Contracts[0], r.Contracts[1], r.Contracts[2])
}

// ExpectedPrice is the pair price (quote per base) assumed for leg i.
func (r SurfaceResult) ExpectedPrice(i int) float64 {
	if r.Rates[i] <= 0 {
		return 0
	}
	if r.Directions[i] == QuoteToBase {
		return 1 / r.Rates[i]
	}
	return r.Rates[i]
}

// Options parameterises Evaluate.
type Options struct {
	Commission       CommissionFunc
	MinProfitPercent float64
	StableAnchored   bool
	Stables          map[string]struct{}
}

// DefaultOptions uses the reference floor and no commission.
func DefaultOptions() Options {
	return Options{MinProfitPercent: DefaultMinProfitPercent}
}

// Evaluate walks tri in both directions and returns the best one clearing the
// floor. Forward wins a tie.
func Evaluate(tri graph.Triangular, quotes map[string]orderbook.BookTicker, opts Options) (SurfaceResult, bool) {
	var best SurfaceResult
	found := false
	for _, dir := range []Direction{Forward, Reverse} {
		res, ok := walk(tri, dir, quotes, opts)
		if !ok || res.ProfitPercent < opts.MinProfitPercent {
			continue
		}
		if !found || res.ProfitPercent > best.ProfitPercent {
			best, found = res, true
		}
	}
	return best, found
}

// EvaluateAll evaluates every triangle and returns the retained results
// sorted by descending profit, ties broken by contracts description.
func EvaluateAll(tris []graph.Triangular, quotes map[string]orderbook.BookTicker, opts Options) []SurfaceResult {
	out := make([]SurfaceResult, 0, len(tris)/4)
	for _, tri := range tris {
		if res, ok := Evaluate(tri, quotes, opts); ok {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProfitPercent != out[j].ProfitPercent {
			return out[i].ProfitPercent > out[j].ProfitPercent
		}
		return out[i].ContractsDescription() < out[j].ContractsDescription()
	})
	return out
}

func walk(tri graph.Triangular, dir Direction, quotes map[string]orderbook.BookTicker, opts Options) (SurfaceResult, bool) {
	first := pairA(tri)
	start := first.base
	if dir == Reverse {
		start = first.quote
	}
	if opts.StableAnchored {
		if _, ok := opts.Stables[start]; !ok {
			return SurfaceResult{}, false
		}
	}

	res := SurfaceResult{Triangle: tri, Direction: dir}
	res.Swaps[0] = start
	amount := 1.0

	held, ok := res.applyLeg(0, first, start, &amount, quotes, opts)
	if !ok {
		return SurfaceResult{}, false
	}
	sc, ok := matchScenario(held, tri)
	if !ok {
		return SurfaceResult{}, false
	}
	if held, ok = res.applyLeg(1, sc.second(tri), held, &amount, quotes, opts); !ok {
		return SurfaceResult{}, false
	}
	if held, ok = res.applyLeg(2, sc.third(tri), held, &amount, quotes, opts); !ok {
		return SurfaceResult{}, false
	}
	if held != start {
		return SurfaceResult{}, false
	}
	res.ProfitPercent = ProfitPercent(amount)
	return res, true
}

// applyLeg swaps the held asset through p, updating amount in place, and
// returns the asset held afterwards.
func (r *SurfaceResult) applyLeg(i int, p legPair, held string, amount *float64, quotes map[string]orderbook.BookTicker, opts Options) (string, bool) {
	q, ok := quotes[p.symbol]
	if !ok || !q.Valid() {
		return "", false
	}
	var next string
	switch held {
	case p.base:
		// selling base prices at the bid
		r.Directions[i] = BaseToQuote
		r.Rates[i] = q.BidPrice
		r.Liquidity[i] = q.BidQty
		next = p.quote
	case p.quote:
		// buying base with quote prices at the inverse of the ask
		r.Directions[i] = QuoteToBase
		r.Rates[i] = 1 / q.AskPrice
		r.Liquidity[i] = q.AskQty / r.Rates[i]
		next = p.base
	default:
		return "", false
	}
	fee := 0.0
	if opts.Commission != nil {
		fee = opts.Commission(p.symbol)
	}
	*amount = *amount * r.Rates[i] * (1 - fee)
	r.Contracts[i] = p.symbol
	r.Acquired[i] = *amount
	r.Swaps[i+1] = next
	return next, true
}
