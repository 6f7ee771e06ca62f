package graph

import (
	"sort"
	"strings"

	"triarb/internal/exchange/common"
)

// Options narrows the enumeration.
type Options struct {
	// StableAnchored keeps only cycles whose first pair has exactly one stable
	// endpoint and whose closing pair touches a stable asset.
	StableAnchored bool
	Stables        []string
	// Blacklist drops every pair touching one of these assets.
	Blacklist []string
	// Whitelist, when non-empty, keeps only pairs whose both assets are listed.
	Whitelist []string
	// TradingOnly skips symbols the exchange does not currently trade.
	TradingOnly bool
	// MaxSymbols bounds the O(n^3) scan; 0 means unbounded. Pairs with more
	// endpoints in Preferred are kept first.
	MaxSymbols int
	// Preferred are the hub assets (stables, bridges) that rank pairs for
	// the MaxSymbols cut.
	Preferred []string
}

// FilterSymbols applies the status, blacklist, whitelist and size bound. The
// result is sorted by symbol so enumeration is deterministic.
//
// Exchange listings carry no volume, so the bound ranks by hub connectivity:
// a pair between two preferred assets outranks one touching a single hub,
// which outranks a pair touching none. Ties fall back to symbol order.
func FilterSymbols(symbols []common.TradeableSymbol, opts Options) []common.TradeableSymbol {
	black := toSet(opts.Blacklist)
	white := toSet(opts.Whitelist)
	out := make([]common.TradeableSymbol, 0, len(symbols))
	seen := map[string]struct{}{}
	for _, s := range symbols {
		if s.Symbol == "" || s.BaseAsset == "" || s.QuoteAsset == "" || s.BaseAsset == s.QuoteAsset {
			continue
		}
		if _, dup := seen[s.Symbol]; dup {
			continue
		}
		if opts.TradingOnly && !s.Trading() {
			continue
		}
		if _, ok := black[s.BaseAsset]; ok {
			continue
		}
		if _, ok := black[s.QuoteAsset]; ok {
			continue
		}
		if len(white) > 0 {
			_, okB := white[s.BaseAsset]
			_, okQ := white[s.QuoteAsset]
			if !okB || !okQ {
				continue
			}
		}
		seen[s.Symbol] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	if opts.MaxSymbols > 0 && len(out) > opts.MaxSymbols {
		hubs := toSet(opts.Preferred)
		sort.SliceStable(out, func(i, j int) bool {
			return endpointsIn(out[i], hubs) > endpointsIn(out[j], hubs)
		})
		out = out[:opts.MaxSymbols]
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	}
	return out
}

// Enumerate scans every ordered (A, B, C) combination of the filtered symbols
// and returns each distinct triangular cycle once, in discovery order.
func Enumerate(symbols []common.TradeableSymbol, opts Options) []Triangular {
	list := FilterSymbols(symbols, opts)
	stables := toSet(opts.Stables)
	seen := make(map[string]struct{})
	var out []Triangular

	for i, a := range list {
		if opts.StableAnchored && endpointsIn(a, stables) != 1 {
			continue
		}
		for j, b := range list {
			if j == i || !sharesAsset(a, b) {
				continue
			}
			for k, c := range list {
				if k == i || k == j || c.BaseAsset == c.QuoteAsset {
					continue
				}
				if !closes(a, b, c) {
					continue
				}
				if opts.StableAnchored && endpointsIn(c, stables) == 0 {
					continue
				}
				key := ContractsKey(a.Symbol, b.Symbol, c.Symbol)
				if _, dup := seen[key]; dup {
					continue
				}
				tri := Triangular{
					PairA: a.Symbol, PairB: b.Symbol, PairC: c.Symbol,
					ABase: a.BaseAsset, AQuote: a.QuoteAsset,
					BBase: b.BaseAsset, BQuote: b.QuoteAsset,
					CBase: c.BaseAsset, CQuote: c.QuoteAsset,
				}
				if !tri.Closed() {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, tri)
			}
		}
	}
	return out
}

func sharesAsset(a, b common.TradeableSymbol) bool {
	return a.BaseAsset == b.BaseAsset || a.BaseAsset == b.QuoteAsset ||
		a.QuoteAsset == b.BaseAsset || a.QuoteAsset == b.QuoteAsset
}

// closes counts C's endpoints across all six; both must occur exactly twice.
func closes(a, b, c common.TradeableSymbol) bool {
	endpoints := [6]string{a.BaseAsset, a.QuoteAsset, b.BaseAsset, b.QuoteAsset, c.BaseAsset, c.QuoteAsset}
	var nBase, nQuote int
	for _, e := range endpoints {
		if e == c.BaseAsset {
			nBase++
		}
		if e == c.QuoteAsset {
			nQuote++
		}
	}
	return nBase == 2 && nQuote == 2
}

func endpointsIn(s common.TradeableSymbol, set map[string]struct{}) int {
	n := 0
	if _, ok := set[s.BaseAsset]; ok {
		n++
	}
	if _, ok := set[s.QuoteAsset]; ok {
		n++
	}
	return n
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.ToUpper(strings.TrimSpace(it))
		if it != "" {
			m[it] = struct{}{}
		}
	}
	return m
}
