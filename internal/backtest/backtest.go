package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"triarb/internal/exchange/common"
	"triarb/internal/graph"
	"triarb/internal/infra/metrics"
	"triarb/internal/ledger"
	"triarb/internal/orderbook"
	"triarb/internal/strategy"
)

// Replays recorded book tickers through the surface engine and ledger.
// CSV format: ts,symbol,bid,bid_qty,ask,ask_qty
// ts is unix milliseconds or RFC3339; rows sharing a ts form one tick.

// DefaultQuoteAssets resolve symbols when no listing is supplied.
var DefaultQuoteAssets = []string{"USDT", "FDUSD", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

type Options struct {
	// Symbols is the exchange listing; when empty, symbols are split on QuoteAssets.
	Symbols     []common.TradeableSymbol
	QuoteAssets []string
	Graph       graph.Options
	Surface     strategy.Options
	Threshold   float64
	Staleness   time.Duration
	MaxHistory  int
}

type Report struct {
	Rows          int
	Skipped       int
	Ticks         int
	Triangles     int
	Opportunities int
	Expired       int
	Live          int
	Best          strategy.SurfaceResult
	BestAt        time.Time
}

func (r Report) String() string {
	s := fmt.Sprintf("backtest rows=%d skipped=%d ticks=%d triangles=%d opportunities=%d expired=%d live=%d",
		r.Rows, r.Skipped, r.Ticks, r.Triangles, r.Opportunities, r.Expired, r.Live)
	if !r.BestAt.IsZero() {
		s += fmt.Sprintf(" best=%s %s %.4f%% at %s", r.Best.ContractsDescription(), r.Best.Direction, r.Best.ProfitPercent, r.BestAt.Format(time.RFC3339))
	}
	return s
}

// RunFile opens path and replays it.
func RunFile(path string, opts Options) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()
	return Run(f, opts)
}

type replay struct {
	opts    Options
	listing map[string]common.TradeableSymbol
	known   map[string]common.TradeableSymbol
	quotes  *orderbook.Tickers
	ledger  *ledger.Ledger
	tris    []graph.Triangular
	dirty   bool
	rep     Report
}

func Run(r io.Reader, opts Options) (Report, error) {
	if len(opts.QuoteAssets) == 0 {
		opts.QuoteAssets = DefaultQuoteAssets
	}
	if opts.Staleness <= 0 {
		opts.Staleness = ledger.DefaultStaleness
	}
	rp := &replay{
		opts:    opts,
		listing: map[string]common.TradeableSymbol{},
		known:   map[string]common.TradeableSymbol{},
		quotes:  orderbook.NewTickers(),
		ledger:  ledger.New(opts.MaxHistory),
	}
	for _, s := range opts.Symbols {
		rp.listing[s.Symbol] = s
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	var (
		cur     time.Time
		pending bool
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rp.rep, err
		}
		if len(rec) < 6 || rec[0] == "ts" {
			rp.rep.Skipped++
			continue
		}
		at, err := parseTime(rec[0])
		if err != nil {
			rp.rep.Skipped++
			continue
		}
		bt, ok := parseTicker(rec)
		if !ok {
			rp.rep.Skipped++
			continue
		}
		if pending && !at.Equal(cur) {
			rp.tick(cur)
		}
		cur, pending = at, true
		rp.rep.Rows++
		rp.observe(bt, at)
	}
	if pending {
		rp.tick(cur)
	}
	rp.rep.Triangles = len(rp.tris)
	rp.rep.Live = rp.ledger.Len()
	return rp.rep, nil
}

func (rp *replay) observe(bt orderbook.BookTicker, at time.Time) {
	rp.quotes.Update(bt, at)
	if _, ok := rp.known[bt.Symbol]; ok {
		return
	}
	s, ok := rp.listing[bt.Symbol]
	if !ok {
		s, ok = split(bt.Symbol, rp.opts.QuoteAssets)
	}
	if !ok {
		return
	}
	rp.known[bt.Symbol] = s
	rp.dirty = true
}

func (rp *replay) tick(at time.Time) {
	if rp.dirty {
		syms := make([]common.TradeableSymbol, 0, len(rp.known))
		for _, s := range rp.known {
			syms = append(syms, s)
		}
		rp.tris = graph.Enumerate(syms, rp.opts.Graph)
		rp.dirty = false
	}
	rp.rep.Ticks++
	results := strategy.EvaluateAll(rp.tris, rp.quotes.Snapshot(), rp.opts.Surface)
	for _, r := range results {
		metrics.TriangleNetBps.Observe(strategy.PercentToBps(r.ProfitPercent))
	}
	if len(results) > 0 && (rp.rep.BestAt.IsZero() || results[0].ProfitPercent > rp.rep.Best.ProfitPercent) {
		rp.rep.Best, rp.rep.BestAt = results[0], at
	}
	st := rp.ledger.Ingest(results, rp.opts.Threshold, at)
	rp.rep.Opportunities += st.Created
	rp.rep.Expired += len(rp.ledger.Sweep(at, rp.opts.Staleness))
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseTicker(rec []string) (orderbook.BookTicker, bool) {
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(rec[i+2]), 64)
		if err != nil {
			return orderbook.BookTicker{}, false
		}
		v[i] = f
	}
	bt := orderbook.BookTicker{Symbol: strings.TrimSpace(rec[1]), BidPrice: v[0], BidQty: v[1], AskPrice: v[2], AskQty: v[3]}
	return bt, bt.Symbol != "" && bt.Valid()
}

// split resolves symbol by the longest matching quote suffix.
func split(symbol string, quotes []string) (common.TradeableSymbol, bool) {
	best := ""
	for _, q := range quotes {
		if len(q) > len(best) && len(symbol) > len(q) && strings.HasSuffix(symbol, q) {
			best = q
		}
	}
	if best == "" {
		return common.TradeableSymbol{}, false
	}
	return common.TradeableSymbol{
		Symbol:     symbol,
		BaseAsset:  strings.TrimSuffix(symbol, best),
		QuoteAsset: best,
		Status:     common.StatusTrading,
	}, true
}
