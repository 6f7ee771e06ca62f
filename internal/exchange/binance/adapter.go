package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"triarb/internal/config"
	"triarb/internal/exchange/common"
	"triarb/internal/infra/metrics"
	"triarb/internal/infra/network"
	"triarb/internal/orderbook"
)

// ErrLiveOrdersUnsupported is returned by SubmitMarketOrder: signed endpoints
// are not wired.
var ErrLiveOrdersUnsupported = fmt.Errorf("binance: live order submission: %w", common.ErrNotSupported)

var (
	_ common.ExchangeAdapter       = (*Adapter)(nil)
	_ common.SymbolFiltersProvider = (*Adapter)(nil)
	_ common.LiveMarketFeeder      = (*Adapter)(nil)
)

type Adapter struct {
	baseURL string
	wsURL   string
	http    *http.Client
	limiter *network.TokenBucket
	logger  zerolog.Logger

	keepAlive time.Duration

	mu      sync.RWMutex
	filters map[string]common.SymbolFilters
}

func New(cfg config.Config, logger zerolog.Logger) *Adapter {
	b := cfg.Exchanges.Binance
	rate := b.RequestsPerSecond
	if rate <= 0 {
		rate = 10
	}
	return &Adapter{
		baseURL:   strings.TrimRight(b.BaseURL, "/"),
		wsURL:     b.WSURL,
		http:      network.NewHTTPClient(10 * time.Second),
		limiter:   network.NewTokenBucket(b.Burst, rate),
		logger:    logger.With().Str("exchange", "binance").Logger(),
		keepAlive: time.Duration(cfg.Network.WSKeepAliveSeconds) * time.Second,
		filters:   map[string]common.SymbolFilters{},
	}
}

func (a *Adapter) Name() string { return "binance" }

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (a *Adapter) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	u := a.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		metrics.APIErrorsTotal.WithLabelValues(a.Name(), endpoint).Inc()
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		metrics.APIErrorsTotal.WithLabelValues(a.Name(), endpoint).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Code != 0 {
			if ae.Code == -1121 {
				return fmt.Errorf("%s: %w: %s", endpoint, common.ErrSymbolUnknown, ae.Msg)
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
				return fmt.Errorf("%s: %w: %s", endpoint, common.ErrRateLimited, ae.Msg)
			}
			return fmt.Errorf("%s: status %d code %d: %s", endpoint, resp.StatusCode, ae.Code, ae.Msg)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
			return fmt.Errorf("%s: %w", endpoint, common.ErrRateLimited)
		}
		return fmt.Errorf("%s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.APIErrorsTotal.WithLabelValues(a.Name(), endpoint).Inc()
		return fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return nil
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol               string `json:"symbol"`
		Status               string `json:"status"`
		BaseAsset            string `json:"baseAsset"`
		QuoteAsset           string `json:"quoteAsset"`
		IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
		Filters              []struct {
			FilterType  string `json:"filterType"`
			StepSize    string `json:"stepSize"`
			MinQty      string `json:"minQty"`
			TickSize    string `json:"tickSize"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// TradeableSymbols lists spot symbols with their order filters and refreshes
// the filter cache used by SymbolFilters.
func (a *Adapter) TradeableSymbols(ctx context.Context) ([]common.TradeableSymbol, error) {
	var info exchangeInfo
	if err := a.get(ctx, "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}
	out := make([]common.TradeableSymbol, 0, len(info.Symbols))
	filters := make(map[string]common.SymbolFilters, len(info.Symbols))
	for _, s := range info.Symbols {
		if !s.IsSpotTradingAllowed {
			continue
		}
		var f common.SymbolFilters
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "LOT_SIZE":
				f.StepSize = parse(flt.StepSize)
				f.MinQty = parse(flt.MinQty)
			case "PRICE_FILTER":
				f.TickSize = parse(flt.TickSize)
			case "MIN_NOTIONAL", "NOTIONAL":
				f.MinNotional = parse(flt.MinNotional)
			}
		}
		filters[s.Symbol] = f
		out = append(out, common.TradeableSymbol{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
			Filters:    f,
		})
	}
	a.mu.Lock()
	a.filters = filters
	a.mu.Unlock()
	a.logger.Debug().Int("symbols", len(out)).Msg("exchange info loaded")
	return out, nil
}

// SymbolFilters serves the cache filled by TradeableSymbols.
func (a *Adapter) SymbolFilters(ctx context.Context, symbol string) (common.SymbolFilters, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.filters[symbol]
	return f, ok
}

type bookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

func (t bookTicker) parse() orderbook.BookTicker {
	return orderbook.BookTicker{
		Symbol:   t.Symbol,
		BidPrice: parse(t.BidPrice),
		BidQty:   parse(t.BidQty),
		AskPrice: parse(t.AskPrice),
		AskQty:   parse(t.AskQty),
	}
}

// BookTickers fetches best bid/ask for every symbol in one call. Symbols with
// an empty side are dropped.
func (a *Adapter) BookTickers(ctx context.Context) (map[string]orderbook.BookTicker, error) {
	var raw []bookTicker
	if err := a.get(ctx, "/api/v3/ticker/bookTicker", nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]orderbook.BookTicker, len(raw))
	for _, r := range raw {
		if bt := r.parse(); bt.Valid() {
			out[bt.Symbol] = bt
		}
	}
	return out, nil
}

func (a *Adapter) OrderbookDepth(ctx context.Context, symbol string, limit int) (orderbook.Depth, error) {
	if limit <= 0 {
		limit = 20
	}
	var raw struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	q := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	if err := a.get(ctx, "/api/v3/depth", q, &raw); err != nil {
		return orderbook.Depth{}, err
	}
	return orderbook.Depth{Bids: levels(raw.Bids), Asks: levels(raw.Asks)}, nil
}

func (a *Adapter) SubmitMarketOrder(ctx context.Context, symbol string, side common.OrderSide, qty float64) (common.OrderResult, error) {
	a.logger.Warn().Str("symbol", symbol).Str("side", string(side)).Float64("qty", qty).Msg("live order refused")
	return common.OrderResult{}, ErrLiveOrdersUnsupported
}

func levels(raw [][2]string) []orderbook.Level {
	out := make([]orderbook.Level, 0, len(raw))
	for _, r := range raw {
		out = append(out, orderbook.Level{Price: parse(r[0]), Qty: parse(r[1])})
	}
	return out
}

func parse(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
