package strategy

import "triarb/internal/graph"

type legPair struct{ symbol, base, quote string }

func pairA(t graph.Triangular) legPair { return legPair{t.PairA, t.ABase, t.AQuote} }
func pairB(t graph.Triangular) legPair { return legPair{t.PairB, t.BBase, t.BQuote} }
func pairC(t graph.Triangular) legPair { return legPair{t.PairC, t.CBase, t.CQuote} }

// scenario links the asset held after leg one to the pair traded second.
type scenario struct {
	name   string
	match  func(held string, t graph.Triangular) bool
	second func(graph.Triangular) legPair
	third  func(graph.Triangular) legPair
}

// scenarios are checked in order; the first match wins. By construction of a
// Triangular at most one of them holds for a given direction.
var scenarios = []scenario{
	{
		name:   "a_b_quote",
		match:  func(h string, t graph.Triangular) bool { return h == t.BQuote },
		second: pairB, third: pairC,
	},
	{
		name:   "a_b_base",
		match:  func(h string, t graph.Triangular) bool { return h == t.BBase },
		second: pairB, third: pairC,
	},
	{
		name:   "a_c_quote",
		match:  func(h string, t graph.Triangular) bool { return h == t.CQuote },
		second: pairC, third: pairB,
	},
	{
		name:   "a_c_base",
		match:  func(h string, t graph.Triangular) bool { return h == t.CBase },
		second: pairC, third: pairB,
	},
}

func matchScenario(held string, t graph.Triangular) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.match(held, t) {
			return sc, true
		}
	}
	return scenario{}, false
}
