package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"triarb/internal/config"
	"triarb/internal/exchange/common"
	"triarb/internal/orderbook"
)

const exchangeInfoBody = `{"symbols":[
 {"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT","isSpotTradingAllowed":true,
  "filters":[{"filterType":"PRICE_FILTER","tickSize":"0.01000000"},
             {"filterType":"LOT_SIZE","stepSize":"0.00001000","minQty":"0.00001000"},
             {"filterType":"NOTIONAL","minNotional":"5.00000000"}]},
 {"symbol":"ETHBTC","status":"BREAK","baseAsset":"ETH","quoteAsset":"BTC","isSpotTradingAllowed":true,
  "filters":[{"filterType":"LOT_SIZE","stepSize":"0.00010000","minQty":"0.00010000"}]},
 {"symbol":"XYZUSDT","status":"TRADING","baseAsset":"XYZ","quoteAsset":"USDT","isSpotTradingAllowed":false,"filters":[]}
]}`

func newTestAdapter(t *testing.T, h http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	var cfg config.Config
	cfg.Exchanges.Binance.BaseURL = srv.URL
	cfg.Exchanges.Binance.WSURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/!bookTicker"
	cfg.Exchanges.Binance.RequestsPerSecond = 1000
	cfg.Exchanges.Binance.Burst = 100
	cfg.Network.WSKeepAliveSeconds = 1
	return New(cfg, zerolog.Nop())
}

func TestTradeableSymbolsParsesFilters(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/exchangeInfo" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(exchangeInfoBody))
	}))
	syms, err := a.TradeableSymbols(context.Background())
	if err != nil {
		t.Fatalf("exchange info: %v", err)
	}
	if len(syms) != 2 {
		t.Fatalf("spot-disabled symbol must be dropped, got %d", len(syms))
	}
	if syms[1].Trading() {
		t.Fatalf("BREAK status must not be trading")
	}
	f, ok := a.SymbolFilters(context.Background(), "BTCUSDT")
	want := common.SymbolFilters{StepSize: 0.00001, MinQty: 0.00001, TickSize: 0.01, MinNotional: 5}
	if !ok || f != want {
		t.Fatalf("filters got %+v want %+v", f, want)
	}
	if f, _ := a.SymbolFilters(context.Background(), "ETHBTC"); f.Complete() {
		t.Fatalf("ETHBTC filters are incomplete: %+v", f)
	}
}

func TestBookTickersAndDepth(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/ticker/bookTicker":
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","bidPrice":"30000.10","bidQty":"1.5","askPrice":"30000.20","askQty":"2"},
				{"symbol":"DEADUSDT","bidPrice":"0.00000000","bidQty":"0","askPrice":"0.00000000","askQty":"0"}]`))
		case "/api/v3/depth":
			if r.URL.Query().Get("symbol") != "BTCUSDT" || r.URL.Query().Get("limit") != "5" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"lastUpdateId":1,"bids":[["30000.10","1.5"],["30000.00","3"]],"asks":[["30000.20","2"]]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	quotes, err := a.BookTickers(context.Background())
	if err != nil {
		t.Fatalf("book tickers: %v", err)
	}
	if len(quotes) != 1 || quotes["BTCUSDT"].BidPrice != 30000.10 || quotes["BTCUSDT"].AskQty != 2 {
		t.Fatalf("unexpected quotes %+v", quotes)
	}
	d, err := a.OrderbookDepth(context.Background(), "BTCUSDT", 5)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if len(d.Bids) != 2 || d.Bids[1] != (orderbook.Level{Price: 30000, Qty: 3}) || len(d.Asks) != 1 {
		t.Fatalf("unexpected depth %+v", d)
	}
}

func TestAPIErrors(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "NOPE" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	if _, err := a.OrderbookDepth(context.Background(), "NOPE", 5); !errors.Is(err, common.ErrSymbolUnknown) {
		t.Fatalf("expected unknown symbol, got %v", err)
	}
	if _, err := a.BookTickers(context.Background()); !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if _, err := a.SubmitMarketOrder(context.Background(), "BTCUSDT", common.Buy, 1); !errors.Is(err, common.ErrNotSupported) {
		t.Fatalf("live orders must be refused, got %v", err)
	}
}

func TestStreamBookTickers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"u":1,"s":"ETHBTC","b":"0.05","B":"10","a":"0.0501","A":"20"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"u":2,"s":"BTCUSDT","b":"30000","B":"1","a":"30010","A":"2"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan orderbook.BookTicker, 4)
	errc := make(chan error, 1)
	go func() { errc <- a.StreamBookTickers(ctx, func(bt orderbook.BookTicker) { got <- bt }) }()

	first := <-got
	second := <-got
	if first.Symbol != "ETHBTC" || first.AskPrice != 0.0501 || second.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected frames %+v %+v", first, second)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
