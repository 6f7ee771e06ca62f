package orderexec

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"triarb/internal/exchange/common"
	"triarb/internal/graph"
	"triarb/internal/ledger"
	"triarb/internal/orderbook"
	"triarb/internal/pnl"
	"triarb/internal/pricing"
	"triarb/internal/risk"
	"triarb/internal/strategy"
)

type submitted struct {
	symbol string
	side   common.OrderSide
	qty    float64
}

// fakeTrader fills at the touch and charges 0.1% in the received asset.
type fakeTrader struct {
	quotes map[string]orderbook.BookTicker
	assets map[string][2]string
	failAt int
	calls  []submitted
}

func (f *fakeTrader) SubmitMarketOrder(ctx context.Context, symbol string, side common.OrderSide, qty float64) (common.OrderResult, error) {
	f.calls = append(f.calls, submitted{symbol, side, qty})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return common.OrderResult{}, &common.OrderError{Code: -2010, Msg: "Account has insufficient balance"}
	}
	q := f.quotes[symbol]
	pair := f.assets[symbol]
	if side == common.Buy {
		return common.OrderResult{
			OrderID: symbol, ExecutedQty: qty, CumulativeQuoteQty: qty * q.AskPrice,
			Fills: []common.Fill{{Price: q.AskPrice, Qty: qty, Commission: qty * 0.001, CommissionAsset: pair[0]}},
		}, nil
	}
	return common.OrderResult{
		OrderID: symbol, ExecutedQty: qty, CumulativeQuoteQty: qty * q.BidPrice,
		Fills: []common.Fill{{Price: q.BidPrice, Qty: qty, Commission: qty * q.BidPrice * 0.001, CommissionAsset: pair[1]}},
	}, nil
}

type filterMap map[string]common.SymbolFilters

func (m filterMap) SymbolFilters(ctx context.Context, symbol string) (common.SymbolFilters, bool) {
	f, ok := m[symbol]
	return f, ok
}

func fixtureQuotes() map[string]orderbook.BookTicker {
	return map[string]orderbook.BookTicker{
		"BTCUSDT": {Symbol: "BTCUSDT", BidPrice: 30000, BidQty: 1, AskPrice: 30010, AskQty: 2},
		"ETHBTC":  {Symbol: "ETHBTC", BidPrice: 0.05, BidQty: 10, AskPrice: 0.0501, AskQty: 20},
		"ETHUSDT": {Symbol: "ETHUSDT", BidPrice: 1510, BidQty: 5, AskPrice: 1511, AskQty: 6},
	}
}

func fixtureFilters() filterMap {
	return filterMap{
		"BTCUSDT": {StepSize: 0.00001, MinQty: 0.00001, TickSize: 0.01, MinNotional: 5},
		"ETHBTC":  {StepSize: 0.0001, MinQty: 0.0001, TickSize: 0.000001, MinNotional: 0.0001},
		"ETHUSDT": {StepSize: 0.0001, MinQty: 0.0001, TickSize: 0.01, MinNotional: 5},
	}
}

func newTrader() *fakeTrader {
	return &fakeTrader{
		quotes: fixtureQuotes(),
		assets: map[string][2]string{
			"BTCUSDT": {"BTC", "USDT"},
			"ETHBTC":  {"ETH", "BTC"},
			"ETHUSDT": {"ETH", "USDT"},
		},
	}
}

// readyOpportunity evaluates the fixture triangle; the reverse walk
// USDT -> BTC -> ETH -> USDT is the profitable one.
func readyOpportunity(t *testing.T) *ledger.Opportunity {
	t.Helper()
	tri := graph.Triangular{
		PairA: "BTCUSDT", ABase: "BTC", AQuote: "USDT",
		PairB: "ETHBTC", BBase: "ETH", BQuote: "BTC",
		PairC: "ETHUSDT", CBase: "ETH", CQuote: "USDT",
	}
	res, ok := strategy.Evaluate(tri, fixtureQuotes(), strategy.DefaultOptions())
	if !ok || res.Direction != strategy.Reverse {
		t.Fatalf("fixture must evaluate in reverse, got %+v ok=%v", res, ok)
	}
	l := ledger.New(0)
	l.Ingest([]strategy.SurfaceResult{res}, -1, time.Now())
	o, _ := l.Get(res.ContractsDescription())
	o.Transition(ledger.StatusPending, ledger.StatusDepthCheck)
	o.MarkVerified(res)
	return o
}

func newSequencer(tr common.Trader, f common.SymbolFiltersProvider, tracker *pnl.Tracker) *Sequencer {
	valuer := pricing.NewValuer([]string{"USDT"}, []string{"BTC"})
	return NewSequencer(DefaultConfig(), tr, f, valuer, tracker, nil, zerolog.Nop())
}

func TestExecuteCompletesCycle(t *testing.T) {
	o := readyOpportunity(t)
	tr := newTrader()
	tracker := pnl.NewTracker()
	rep, err := newSequencer(tr, fixtureFilters(), tracker).Execute(context.Background(), o, fixtureQuotes())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if o.Status() != ledger.StatusCompleted || o.Stage() != ledger.StageThirdTradeFinished {
		t.Fatalf("unexpected final state %s/%s", o.Status(), o.Stage())
	}
	if len(tr.calls) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(tr.calls))
	}
	want := []submitted{
		{"BTCUSDT", common.Buy, 0.00033},
		{"ETHBTC", common.Buy, 0.0065},
		{"ETHUSDT", common.Sell, 0.0064},
	}
	for i, w := range want {
		c := tr.calls[i]
		if c.symbol != w.symbol || c.side != w.side || math.Abs(c.qty-w.qty) > 1e-12 {
			t.Fatalf("leg %d got %+v want %+v", i+1, c, w)
		}
	}
	// 2 x min notional 5 USDT
	if rep.CapitalUSD != 10 {
		t.Fatalf("capital got %v want 10", rep.CapitalUSD)
	}
	if rep.Legs[0].Spent > rep.Legs[0].Input {
		t.Fatalf("leg 1 overspent: %+v", rep.Legs[0])
	}
	// BTC commission is taken from the BTC received on leg 1
	if math.Abs(rep.Legs[0].Output-0.00033*0.999) > 1e-15 {
		t.Fatalf("leg 1 output got %v", rep.Legs[0].Output)
	}
	sum := rep.FinalUSD + rep.LeftoverUSD - rep.CapitalUSD - rep.CommissionUSD
	if math.Abs(rep.ProfitUSD-sum) > 1e-12 {
		t.Fatalf("profit %v does not reconcile with %v", rep.ProfitUSD, sum)
	}
	if runs := tracker.Runs(); len(runs) != 1 || runs[0].ID != rep.RunID || tracker.RealizedUSD() != rep.ProfitUSD {
		t.Fatalf("pnl not recorded: %+v", runs)
	}
	if len(o.Log()) != 5 {
		t.Fatalf("expected start, three legs and completion in the log, got %d lines", len(o.Log()))
	}
}

func TestExecuteStopsOnRejectedLeg(t *testing.T) {
	o := readyOpportunity(t)
	tr := newTrader()
	tr.failAt = 2
	_, err := newSequencer(tr, fixtureFilters(), nil).Execute(context.Background(), o, fixtureQuotes())
	var oe *common.OrderError
	if !errors.As(err, &oe) || oe.Code != -2010 {
		t.Fatalf("expected exchange rejection, got %v", err)
	}
	if o.Status() != ledger.StatusForbidden || o.Stage() != ledger.StageSecondTradeError {
		t.Fatalf("unexpected state %s/%s", o.Status(), o.Stage())
	}
	if len(tr.calls) != 2 {
		t.Fatalf("third leg must not be submitted, got %d calls", len(tr.calls))
	}
}

func TestExecuteRequiresFilters(t *testing.T) {
	o := readyOpportunity(t)
	tr := newTrader()
	f := fixtureFilters()
	delete(f, "BTCUSDT")
	_, err := newSequencer(tr, f, nil).Execute(context.Background(), o, fixtureQuotes())
	if !errors.Is(err, ErrConstraintMissing) {
		t.Fatalf("expected missing constraint, got %v", err)
	}
	if len(tr.calls) != 0 || o.Status() != ledger.StatusForbidden || o.Stage() != ledger.StageFirstTradeError {
		t.Fatalf("nothing should trade: calls=%d state=%s/%s", len(tr.calls), o.Status(), o.Stage())
	}
}

func TestExecuteRequiresReadyToTrade(t *testing.T) {
	o := readyOpportunity(t)
	o.Transition(ledger.StatusReadyToTrade, ledger.StatusPending)
	_, err := newSequencer(newTrader(), fixtureFilters(), nil).Execute(context.Background(), o, fixtureQuotes())
	if !errors.Is(err, ledger.ErrNotEligible) {
		t.Fatalf("expected not eligible, got %v", err)
	}
}

func TestExecuteNotionalCap(t *testing.T) {
	o := readyOpportunity(t)
	tr := newTrader()
	s := newSequencer(tr, fixtureFilters(), nil)
	s.UseGate(risk.NewGate(risk.Limits{MaxNotionalUSD: 5}))
	if _, err := s.Execute(context.Background(), o, fixtureQuotes()); !errors.Is(err, ErrNotionalCap) {
		t.Fatalf("expected notional cap, got %v", err)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("no order expected")
	}
}

func TestExecuteFollowsVerifiedResult(t *testing.T) {
	o := readyOpportunity(t)
	verified := o.Latest()

	// a surface tick lands after the depth check with the other direction on top
	flipped := verified
	flipped.Direction = strategy.Forward
	flipped.Swaps = [4]string{"BTC", "USDT", "ETH", "BTC"}
	flipped.Directions = [3]strategy.TradeDirection{strategy.BaseToQuote, strategy.QuoteToBase, strategy.BaseToQuote}
	flipped.Contracts = [3]string{"BTCUSDT", "ETHUSDT", "ETHBTC"}
	if !o.Append(flipped, time.Now().Add(100*time.Millisecond)) {
		t.Fatalf("later snapshot not appended")
	}
	if o.Latest().Direction != strategy.Forward {
		t.Fatalf("latest snapshot must be the flipped one")
	}

	tr := newTrader()
	if _, err := newSequencer(tr, fixtureFilters(), nil).Execute(context.Background(), o, fixtureQuotes()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for i, c := range tr.calls {
		if c.symbol != verified.Contracts[i] {
			t.Fatalf("leg %d traded %s, verified path is %v", i+1, c.symbol, verified.Contracts)
		}
	}
	if tr.calls[0].side != common.Buy {
		t.Fatalf("first leg must buy BTC with USDT as verified, got %s", tr.calls[0].side)
	}
}

func TestExecuteRequiresVerifiedResult(t *testing.T) {
	res := readyOpportunity(t).Latest()
	l := ledger.New(0)
	l.Ingest([]strategy.SurfaceResult{res}, -1, time.Now())
	o, _ := l.Get(res.ContractsDescription())
	o.Transition(ledger.StatusPending, ledger.StatusDepthCheck)
	o.Transition(ledger.StatusDepthCheck, ledger.StatusReadyToTrade)

	tr := newTrader()
	_, err := newSequencer(tr, fixtureFilters(), nil).Execute(context.Background(), o, fixtureQuotes())
	if !errors.Is(err, ledger.ErrNotEligible) || len(tr.calls) != 0 {
		t.Fatalf("unverified opportunity must not trade: err=%v calls=%d", err, len(tr.calls))
	}
	if o.Status() != ledger.StatusReadyToTrade {
		t.Fatalf("status must be left untouched, got %s", o.Status())
	}
}
