package orderbook

import (
	"math"
	"testing"
	"time"
)

func sampleDepth() Depth {
	return Depth{
		Asks: []Level{{5, 1}, {6, 2}, {7, 3}},
		Bids: []Level{{4, 1}, {3, 2}, {2, 3}},
	}
}

func TestAverageFillPriceWholeBook(t *testing.T) {
	d := sampleDepth()
	sell, filled, ok := d.AverageFillPrice(SellBase, 100)
	if !ok || filled != 6 {
		t.Fatalf("expected 6 filled on bids, got %v ok=%v", filled, ok)
	}
	if math.Abs(sell-2.6667) > 0.0001 {
		t.Fatalf("sell avg got %.6f want 2.6667", sell)
	}
	buy, _, ok := d.AverageFillPrice(BuyBase, 0)
	if !ok || math.Abs(buy-6.3333) > 0.0001 {
		t.Fatalf("buy avg got %.6f want 6.3333", buy)
	}
}

func TestAverageFillPricePartialLevel(t *testing.T) {
	d := sampleDepth()
	// 1@5 + 1.5@6 = 14 / 2.5
	avg, filled, ok := d.AverageFillPrice(BuyBase, 2.5)
	if !ok || filled != 2.5 {
		t.Fatalf("expected 2.5 filled, got %v", filled)
	}
	if math.Abs(avg-5.6) > 1e-9 {
		t.Fatalf("avg got %v want 5.6", avg)
	}
	best, _, _ := d.AverageFillPrice(SellBase, 0.5)
	if best != 4 {
		t.Fatalf("small sell should price at best bid, got %v", best)
	}
}

func TestAverageFillPriceEmpty(t *testing.T) {
	if _, _, ok := (Depth{}).AverageFillPrice(BuyBase, 1); ok {
		t.Fatalf("empty book must not report a price")
	}
	if got := sampleDepth().Available(SellBase); got != 6 {
		t.Fatalf("available bids got %v want 6", got)
	}
}

func TestTickersSnapshotIsCopy(t *testing.T) {
	c := NewTickers()
	now := time.Now()
	c.Replace(map[string]BookTicker{"BTCUSDT": {Symbol: "BTCUSDT", BidPrice: 1, AskPrice: 2}}, now)
	snap := c.Snapshot()
	c.Update(BookTicker{Symbol: "ETHUSDT", BidPrice: 3, AskPrice: 4}, now.Add(time.Second))
	if len(snap) != 1 {
		t.Fatalf("snapshot must not observe later updates, got %d entries", len(snap))
	}
	if c.Len() != 2 || !c.UpdatedAt().Equal(now.Add(time.Second)) {
		t.Fatalf("cache not updated: len=%d", c.Len())
	}
	if bt, ok := c.Get("BTCUSDT"); !ok || bt.Mid() != 1.5 {
		t.Fatalf("unexpected ticker %+v", bt)
	}
}
