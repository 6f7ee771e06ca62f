package paper

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"triarb/internal/exchange/common"
	"triarb/internal/orderbook"
)

type stubMarket struct{}

func (stubMarket) Name() string { return "stub" }
func (stubMarket) TradeableSymbols(ctx context.Context) ([]common.TradeableSymbol, error) {
	return nil, nil
}
func (stubMarket) BookTickers(ctx context.Context) (map[string]orderbook.BookTicker, error) {
	return nil, nil
}
func (stubMarket) OrderbookDepth(ctx context.Context, symbol string, limit int) (orderbook.Depth, error) {
	return orderbook.Depth{}, nil
}

func newPaper() *Trader {
	quotes := orderbook.NewTickers()
	quotes.Update(orderbook.BookTicker{Symbol: "BTCUSDT", BidPrice: 30000, BidQty: 1, AskPrice: 30010, AskQty: 1}, time.Now())
	assets := func(s string) (string, string, bool) {
		if s == "BTCUSDT" {
			return "BTC", "USDT", true
		}
		return "", "", false
	}
	return New(stubMarket{}, quotes, assets, 0.001, zerolog.Nop())
}

func TestPaperFills(t *testing.T) {
	p := newPaper()
	buy, err := p.SubmitMarketOrder(context.Background(), "BTCUSDT", common.Buy, 0.5)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if buy.CumulativeQuoteQty != 15005 || buy.Fills[0].CommissionAsset != "BTC" || math.Abs(buy.Fills[0].Commission-0.0005) > 1e-15 {
		t.Fatalf("unexpected buy %+v", buy)
	}
	sell, err := p.SubmitMarketOrder(context.Background(), "BTCUSDT", common.Sell, 0.5)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if sell.AvgPrice() != 30000 || sell.Fills[0].CommissionAsset != "USDT" || math.Abs(sell.Fills[0].Commission-15) > 1e-9 {
		t.Fatalf("unexpected sell %+v", sell)
	}
	if buy.OrderID == sell.OrderID {
		t.Fatalf("order ids must be unique")
	}
}

func TestPaperRejects(t *testing.T) {
	p := newPaper()
	if _, err := p.SubmitMarketOrder(context.Background(), "ETHBTC", common.Buy, 1); !errors.Is(err, common.ErrSymbolUnknown) {
		t.Fatalf("expected unknown symbol, got %v", err)
	}
	var oe *common.OrderError
	if _, err := p.SubmitMarketOrder(context.Background(), "BTCUSDT", common.Sell, 0); !errors.As(err, &oe) {
		t.Fatalf("expected order error for zero qty, got %v", err)
	}
	if _, ok := p.SymbolFilters(context.Background(), "BTCUSDT"); ok {
		t.Fatalf("stub market has no filters")
	}
}
