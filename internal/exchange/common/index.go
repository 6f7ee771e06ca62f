package common

import (
	"context"
	"sync"
)

// SymbolIndex maps a symbol to its listing. It is refreshed after every
// enumeration and read by components that only know symbol names.
type SymbolIndex struct {
	mu sync.RWMutex
	m  map[string]TradeableSymbol
}

func NewSymbolIndex() *SymbolIndex { return &SymbolIndex{m: map[string]TradeableSymbol{}} }

// Set replaces the index contents.
func (x *SymbolIndex) Set(symbols []TradeableSymbol) {
	m := make(map[string]TradeableSymbol, len(symbols))
	for _, s := range symbols {
		m[s.Symbol] = s
	}
	x.mu.Lock()
	x.m = m
	x.mu.Unlock()
}

func (x *SymbolIndex) Lookup(symbol string) (TradeableSymbol, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.m[symbol]
	return s, ok
}

// Assets splits a known symbol into base and quote.
func (x *SymbolIndex) Assets(symbol string) (base, quote string, ok bool) {
	s, ok := x.Lookup(symbol)
	return s.BaseAsset, s.QuoteAsset, ok
}

// SymbolFilters serves the filters captured with the listing, so a restored
// universe can size orders before the exchange is queried again.
func (x *SymbolIndex) SymbolFilters(_ context.Context, symbol string) (SymbolFilters, bool) {
	s, ok := x.Lookup(symbol)
	if !ok || !s.Filters.Complete() {
		return SymbolFilters{}, false
	}
	return s.Filters, true
}

func (x *SymbolIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.m)
}
