package orderbook

import (
	"sync"
	"time"
)

// BookTicker is the best bid/ask snapshot of one symbol. Prices arrive as
// numeric strings from the exchange and are parsed once at the adapter.
type BookTicker struct {
	Symbol   string  `json:"symbol"`
	BidPrice float64 `json:"bid_price"`
	BidQty   float64 `json:"bid_qty"`
	AskPrice float64 `json:"ask_price"`
	AskQty   float64 `json:"ask_qty"`
}

// Valid reports whether both sides carry a usable price.
func (t BookTicker) Valid() bool { return t.BidPrice > 0 && t.AskPrice > 0 }

// Mid returns the midpoint between best bid and best ask.
func (t BookTicker) Mid() float64 { return (t.BidPrice + t.AskPrice) / 2 }

// Tickers is the live quote cache shared between the feed and the surface ticker.
type Tickers struct {
	mu      sync.RWMutex
	bySym   map[string]BookTicker
	updated time.Time
}

func NewTickers() *Tickers { return &Tickers{bySym: make(map[string]BookTicker)} }

// Replace swaps the whole cache for a REST snapshot.
func (t *Tickers) Replace(m map[string]BookTicker, at time.Time) {
	next := make(map[string]BookTicker, len(m))
	for k, v := range m {
		next[k] = v
	}
	t.mu.Lock()
	t.bySym = next
	t.updated = at
	t.mu.Unlock()
}

// Update merges a single streamed ticker.
func (t *Tickers) Update(bt BookTicker, at time.Time) {
	if bt.Symbol == "" {
		return
	}
	t.mu.Lock()
	t.bySym[bt.Symbol] = bt
	t.updated = at
	t.mu.Unlock()
}

func (t *Tickers) Get(symbol string) (BookTicker, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bt, ok := t.bySym[symbol]
	return bt, ok
}

// Snapshot copies the cache; the copy is owned by the caller.
func (t *Tickers) Snapshot() map[string]BookTicker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]BookTicker, len(t.bySym))
	for k, v := range t.bySym {
		out[k] = v
	}
	return out
}

func (t *Tickers) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bySym)
}

// UpdatedAt is the time of the last Replace or Update.
func (t *Tickers) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}
