package common

import (
	"context"
	"errors"
	"fmt"

	"triarb/internal/orderbook"
)

var (
	ErrSymbolUnknown = errors.New("symbol unknown")
	ErrNotSupported  = errors.New("operation not supported")
	ErrRateLimited   = errors.New("rate limited")
	ErrQuoteMissing  = errors.New("quote missing")
)

// TradeableSymbol is one spot pair as listed by the exchange.
type TradeableSymbol struct {
	Symbol     string        `json:"symbol"`
	BaseAsset  string        `json:"base_asset"`
	QuoteAsset string        `json:"quote_asset"`
	Status     string        `json:"status,omitempty"`
	Filters    SymbolFilters `json:"filters"`
}

// Trading reports whether the exchange currently accepts orders on the symbol.
func (s TradeableSymbol) Trading() bool { return s.Status == "" || s.Status == StatusTrading }

const StatusTrading = "TRADING"

// SymbolFilters are the exchange-imposed order constraints.
type SymbolFilters struct {
	StepSize    float64 `json:"step_size"` // lot size increment
	MinQty      float64 `json:"min_qty"`
	TickSize    float64 `json:"tick_size"`    // price increment
	MinNotional float64 `json:"min_notional"` // quote value
}

// Complete reports whether every constraint needed to size a market order is known.
func (f SymbolFilters) Complete() bool {
	return f.StepSize > 0 && f.TickSize > 0 && f.MinNotional > 0
}

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Fill is one execution slice of a market order.
type Fill struct {
	Price           float64
	Qty             float64
	Commission      float64
	CommissionAsset string
}

// OrderResult is the acknowledgement of a filled market order.
type OrderResult struct {
	OrderID            string
	ExecutedQty        float64 // base units
	CumulativeQuoteQty float64 // quote units
	Fills              []Fill
}

// AvgPrice is the executed value per base unit.
func (r OrderResult) AvgPrice() float64 {
	if r.ExecutedQty <= 0 {
		return 0
	}
	return r.CumulativeQuoteQty / r.ExecutedQty
}

// OrderError is a rejection reported by the exchange itself, as opposed to a
// transport failure.
type OrderError struct {
	Code int
	Msg  string
}

func (e *OrderError) Error() string { return fmt.Sprintf("exchange rejected order: code=%d msg=%s", e.Code, e.Msg) }

// MarketData is the read side of an exchange client.
type MarketData interface {
	Name() string
	TradeableSymbols(ctx context.Context) ([]TradeableSymbol, error)
	BookTickers(ctx context.Context) (map[string]orderbook.BookTicker, error)
	OrderbookDepth(ctx context.Context, symbol string, limit int) (orderbook.Depth, error)
}

// Trader submits market orders.
type Trader interface {
	SubmitMarketOrder(ctx context.Context, symbol string, side OrderSide, qty float64) (OrderResult, error)
}

type ExchangeAdapter interface {
	MarketData
	Trader
}

// Optional capability: symbol filters for order sizing
type SymbolFiltersProvider interface {
	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, bool)
}

// Optional capability: live best bid/ask stream. fn is called from the
// reader goroutine; the call blocks until ctx is done.
type LiveMarketFeeder interface {
	StreamBookTickers(ctx context.Context, fn func(orderbook.BookTicker)) error
}
