package pricing

import (
	"testing"

	"triarb/internal/orderbook"
)

func quotes() map[string]orderbook.BookTicker {
	return map[string]orderbook.BookTicker{
		"BTCUSDT": {Symbol: "BTCUSDT", BidPrice: 29990, AskPrice: 30010},
		"USDTTRY": {Symbol: "USDTTRY", BidPrice: 31.9, AskPrice: 32.1},
		"XMRBTC":  {Symbol: "XMRBTC", BidPrice: 0.005, AskPrice: 0.005},
		"ETHUSDT": {Symbol: "ETHUSDT"},
	}
}

func TestValuerRoutes(t *testing.T) {
	v := NewValuer([]string{"usdt", "BUSD"}, []string{"BTC"})
	q := quotes()
	cases := []struct {
		asset string
		want  float64
		ok    bool
	}{
		{"USDT", 1, true},
		{"BUSD", 1, true},
		{"BTC", 30000, true},
		{"TRY", 1.0 / 32, true},
		{"XMR", 150, true},
		{"ETH", 0, false}, // invalid quote
		{"DOGE", 0, false},
	}
	for _, c := range cases {
		got, ok := v.Price(c.asset, q)
		if ok != c.ok || (ok && (got-c.want > 1e-9 || c.want-got > 1e-9)) {
			t.Fatalf("%s: got %v ok=%v want %v ok=%v", c.asset, got, ok, c.want, c.ok)
		}
	}
	if val, ok := v.Value("BTC", 0.5, q); !ok || val != 15000 {
		t.Fatalf("value got %v", val)
	}
	if !v.IsStable("USDT") || v.IsStable("BTC") {
		t.Fatalf("stable set wrong")
	}
}
