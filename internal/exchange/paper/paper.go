// Package paper fills market orders against the live quote cache so the whole
// pipeline can run without signed exchange access.
package paper

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"triarb/internal/exchange/common"
	"triarb/internal/orderbook"
)

// Trader wraps a market-data adapter. Orders fill in full at the cached touch
// price; the taker fee is charged in the received asset.
type Trader struct {
	common.MarketData
	quotes  *orderbook.Tickers
	filters common.SymbolFiltersProvider
	assets  func(symbol string) (base, quote string, ok bool)
	feeRate float64
	logger  zerolog.Logger
	seq     atomic.Int64
}

// New builds a paper trader. assets resolves a symbol to its base and quote;
// feeRate is a fraction (0.00075 for 7.5 bps).
func New(md common.MarketData, quotes *orderbook.Tickers, assets func(string) (string, string, bool), feeRate float64, logger zerolog.Logger) *Trader {
	t := &Trader{MarketData: md, quotes: quotes, assets: assets, feeRate: feeRate, logger: logger.With().Str("exchange", "paper").Logger()}
	if fp, ok := md.(common.SymbolFiltersProvider); ok {
		t.filters = fp
	}
	return t
}

func (t *Trader) Name() string { return "paper:" + t.MarketData.Name() }

// SymbolFilters delegates to the wrapped adapter when it has them.
func (t *Trader) SymbolFilters(ctx context.Context, symbol string) (common.SymbolFilters, bool) {
	if t.filters == nil {
		return common.SymbolFilters{}, false
	}
	return t.filters.SymbolFilters(ctx, symbol)
}

func (t *Trader) SubmitMarketOrder(ctx context.Context, symbol string, side common.OrderSide, qty float64) (common.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return common.OrderResult{}, err
	}
	if qty <= 0 {
		return common.OrderResult{}, &common.OrderError{Code: -1013, Msg: "invalid quantity"}
	}
	base, quote, ok := t.assets(symbol)
	if !ok {
		return common.OrderResult{}, fmt.Errorf("paper %s: %w", symbol, common.ErrSymbolUnknown)
	}
	q, ok := t.quotes.Get(symbol)
	if !ok || !q.Valid() {
		return common.OrderResult{}, fmt.Errorf("paper %s: %w", symbol, common.ErrQuoteMissing)
	}
	res := common.OrderResult{OrderID: "paper-" + strconv.FormatInt(t.seq.Add(1), 10), ExecutedQty: qty}
	var fill common.Fill
	switch side {
	case common.Buy:
		res.CumulativeQuoteQty = qty * q.AskPrice
		fill = common.Fill{Price: q.AskPrice, Qty: qty, Commission: qty * t.feeRate, CommissionAsset: base}
	case common.Sell:
		res.CumulativeQuoteQty = qty * q.BidPrice
		fill = common.Fill{Price: q.BidPrice, Qty: qty, Commission: res.CumulativeQuoteQty * t.feeRate, CommissionAsset: quote}
	default:
		return common.OrderResult{}, &common.OrderError{Code: -1106, Msg: "unknown side " + string(side)}
	}
	res.Fills = []common.Fill{fill}
	t.logger.Info().
		Str("order", res.OrderID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("qty", qty).
		Float64("price", fill.Price).
		Msg("paper fill")
	return res, nil
}
