package graph

import (
	"sort"
	"strings"
)

// Triangular is a 3-cycle in the asset graph: three pairs whose six endpoints
// resolve to exactly three assets, each shared by two of the pairs.
type Triangular struct {
	PairA  string `json:"pair_a"`
	PairB  string `json:"pair_b"`
	PairC  string `json:"pair_c"`
	ABase  string `json:"a_base"`
	AQuote string `json:"a_quote"`
	BBase  string `json:"b_base"`
	BQuote string `json:"b_quote"`
	CBase  string `json:"c_base"`
	CQuote string `json:"c_quote"`
}

// Key is the order-independent identity of the cycle: sorted pair ids joined
// by commas.
func (t Triangular) Key() string { return ContractsKey(t.PairA, t.PairB, t.PairC) }

// Closed checks the two-of-three rule.
func (t Triangular) Closed() bool {
	if t.PairA == t.PairB || t.PairB == t.PairC || t.PairA == t.PairC {
		return false
	}
	counts := map[string]int{}
	for _, a := range []string{t.ABase, t.AQuote, t.BBase, t.BQuote, t.CBase, t.CQuote} {
		counts[a]++
	}
	if len(counts) != 3 {
		return false
	}
	for _, n := range counts {
		if n != 2 {
			return false
		}
	}
	return t.ABase != t.AQuote && t.BBase != t.BQuote && t.CBase != t.CQuote
}

// ContractsKey builds the identity shared by a Triangular and every
// opportunity derived from it.
func ContractsKey(pairs ...string) string {
	s := append([]string(nil), pairs...)
	sort.Strings(s)
	return strings.Join(s, ",")
}
