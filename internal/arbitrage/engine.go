package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"triarb/internal/config"
	"triarb/internal/exchange/common"
	"triarb/internal/graph"
	"triarb/internal/infra/health"
	"triarb/internal/infra/log"
	"triarb/internal/infra/metrics"
	"triarb/internal/infra/runner"
	"triarb/internal/ledger"
	"triarb/internal/notify"
	"triarb/internal/orderbook"
	"triarb/internal/orderexec"
	"triarb/internal/pnl"
	"triarb/internal/pricing"
	"triarb/internal/risk"
	"triarb/internal/slippage"
	"triarb/internal/store"
	"triarb/internal/strategy"
)

// Deps are the collaborators the engine drives. Nil optional fields get
// in-memory defaults.
type Deps struct {
	MarketData common.MarketData
	Trader     common.Trader
	Quotes     *orderbook.Tickers
	Index      *common.SymbolIndex
	Store      store.Store
	Notifier   notify.Notifier
	Tracker    *pnl.Tracker
}

// Engine runs the enumerate / surface / verify / execute pipeline for one exchange.
type Engine struct {
	cfg      config.Config
	md       common.MarketData
	quotes   *orderbook.Tickers
	index    *common.SymbolIndex
	store    store.Store
	notifier notify.Notifier
	tracker  *pnl.Tracker
	logger   log.Logger

	ledger   *ledger.Ledger
	gate     *risk.Gate
	verifier *slippage.Verifier
	seq      *orderexec.Sequencer

	graphOpts   graph.Options
	surfaceOpts strategy.Options

	mu           sync.RWMutex
	triangles    []graph.Triangular
	enumeratedAt time.Time

	tasks sync.WaitGroup
	now   func() time.Time
}

func New(cfg config.Config, d Deps, logger log.Logger) *Engine {
	if d.Quotes == nil {
		d.Quotes = orderbook.NewTickers()
	}
	if d.Index == nil {
		d.Index = common.NewSymbolIndex()
	}
	if d.Store == nil {
		d.Store = store.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Tracker == nil {
		d.Tracker = pnl.NewTracker()
	}
	t := cfg.Trading
	valuer := pricing.NewValuer(t.Stables, t.Bridges)
	gate := risk.NewGate(risk.Limits{MaxConcurrent: t.MaxConcurrent, MaxNotionalUSD: t.MaxNotionalUSD})
	verifier := slippage.NewVerifier(slippage.Config{
		DepthLimit:     t.DepthLimit,
		MinStableValue: t.MinStableValue,
		SizeMultiplier: t.SizeMultiplier,
		MaxPercent:     t.MaxSlippagePercent,
	}, d.MarketData, valuer, log.Component(logger, "verifier"))
	seq := orderexec.NewSequencer(orderexec.Config{
		NotionalMultiplier: t.NotionalMultiplier,
		MinStableValue:     t.MinStableValue,
	}, d.Trader, d.Index, valuer, d.Tracker, d.Notifier, log.Component(logger, "sequencer"))
	seq.UseGate(gate)

	return &Engine{
		cfg:      cfg,
		md:       d.MarketData,
		quotes:   d.Quotes,
		index:    d.Index,
		store:    d.Store,
		notifier: d.Notifier,
		tracker:  d.Tracker,
		logger:   logger,
		ledger:   ledger.New(t.MaxHistory),
		gate:     gate,
		verifier: verifier,
		seq:      seq,
		graphOpts: graph.Options{
			StableAnchored: t.StableAnchored,
			Stables:        t.Stables,
			Blacklist:      t.Blacklist,
			Whitelist:      t.Whitelist,
			TradingOnly:    true,
			MaxSymbols:     t.MaxSymbols,
			Preferred:      append(append([]string(nil), t.Stables...), t.Bridges...),
		},
		surfaceOpts: strategy.Options{
			Commission:       strategy.NewCommissions(t.CommissionBps, t.CommissionExempt).Rate,
			MinProfitPercent: t.MinProfitPercent,
			StableAnchored:   t.StableAnchored,
			Stables:          valuer.Stables(),
		},
		now: time.Now,
	}
}

func (e *Engine) Ledger() *ledger.Ledger     { return e.ledger }
func (e *Engine) Quotes() *orderbook.Tickers { return e.quotes }
func (e *Engine) Tracker() *pnl.Tracker      { return e.tracker }

// Triangles returns the current universe; the slice must not be modified.
func (e *Engine) Triangles() []graph.Triangular {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.triangles
}

func (e *Engine) EnumeratedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enumeratedAt
}

func (e *Engine) setUniverse(symbols []common.TradeableSymbol, tris []graph.Triangular, at time.Time) {
	e.index.Set(symbols)
	e.mu.Lock()
	e.triangles = tris
	e.enumeratedAt = at
	e.mu.Unlock()
	metrics.SymbolsTradeable.Set(float64(len(symbols)))
	metrics.TrianglesEnumerated.Set(float64(len(tris)))
	health.Set("universe", len(tris) > 0)
}

// Run blocks until ctx is done. In-flight verify/execute tasks are awaited
// before it returns.
func (e *Engine) Run(ctx context.Context) error {
	if e.md == nil {
		return errors.New("engine: no market data adapter")
	}
	t := e.cfg.Trading
	health.Expect("universe", "quotes")
	e.warmStart(ctx)
	if err := e.Enumerate(ctx); err != nil {
		e.logger.Error().Err(err).Msg("initial enumeration failed")
	}

	var g runner.Group
	g.Go(ctx, func(ctx context.Context) error {
		runner.Every(ctx, time.Duration(t.EnumerateIntervalSeconds)*time.Second, 0, func(ctx context.Context) {
			if err := e.Enumerate(ctx); err != nil {
				e.logger.Error().Err(err).Msg("enumeration failed")
			}
		}, nil)
		return nil
	})
	g.Go(ctx, e.feedQuotes)
	if t.ReportIntervalSeconds > 0 {
		g.Go(ctx, func(ctx context.Context) error {
			runner.Every(ctx, time.Duration(t.ReportIntervalSeconds)*time.Second, 0, e.report, nil)
			return nil
		})
	}

	lag := time.Duration(t.MaxTickLagMs) * time.Millisecond
	runner.Every(ctx, time.Duration(t.SurfaceIntervalMs)*time.Millisecond, lag, e.Tick, func(skipped int) {
		metrics.TickOverrunsTotal.WithLabelValues("surface").Add(float64(skipped))
	})

	g.Wait()
	e.tasks.Wait()
	return nil
}

func (e *Engine) warmStart(ctx context.Context) {
	ctxTO, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	u, err := e.store.LoadUniverse(ctxTO, e.md.Name())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn().Err(err).Msg("warm start load failed")
		}
		return
	}
	e.setUniverse(u.Symbols, u.Triangles, u.SavedAt)
	e.logger.Info().Int("triangles", len(u.Triangles)).Time("saved_at", u.SavedAt).Msg("universe restored")
}

// Enumerate refreshes the symbol list and rebuilds the triangle universe.
func (e *Engine) Enumerate(ctx context.Context) error {
	ctxTO, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	syms, err := e.md.TradeableSymbols(ctxTO)
	if err != nil {
		return fmt.Errorf("tradeable symbols: %w", err)
	}
	start := e.now()
	tris := graph.Enumerate(syms, e.graphOpts)
	at := e.now()
	e.setUniverse(syms, tris, at)
	e.logger.Info().
		Int("symbols", len(syms)).
		Int("triangles", len(tris)).
		Dur("took", at.Sub(start)).
		Msg("triangles enumerated")

	u := store.Universe{Exchange: e.md.Name(), Symbols: syms, Triangles: tris, SavedAt: at}
	if err := e.store.SaveUniverse(ctxTO, u); err != nil {
		e.logger.Warn().Err(err).Msg("universe not persisted")
	}
	return nil
}

// feedQuotes keeps the quote cache warm: a REST snapshot first, then either
// the live stream or periodic polling.
func (e *Engine) feedQuotes(ctx context.Context) error {
	e.refreshQuotes(ctx)
	if feeder, ok := e.md.(common.LiveMarketFeeder); ok && e.cfg.Trading.Stream {
		err := feeder.StreamBookTickers(ctx, func(bt orderbook.BookTicker) {
			e.quotes.Update(bt, e.now())
		})
		if ctx.Err() != nil {
			return nil
		}
		e.logger.Warn().Err(err).Msg("quote stream ended, falling back to polling")
	}
	runner.Every(ctx, time.Duration(e.cfg.Trading.QuoteRefreshMs)*time.Millisecond, 0, e.refreshQuotes, nil)
	return nil
}

func (e *Engine) refreshQuotes(ctx context.Context) {
	ctxTO, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q, err := e.md.BookTickers(ctxTO)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Debug().Err(err).Msg("book tickers fetch failed")
		}
		return
	}
	e.quotes.Replace(q, e.now())
	metrics.QuotesCached.Set(float64(len(q)))
	health.Set("quotes", len(q) > 0)
}

// Tick runs one surface pass: evaluate every triangle against one quote
// snapshot, merge survivors into the ledger, drop stale entries and, with
// auto-trading on, dispatch eligible opportunities.
func (e *Engine) Tick(ctx context.Context) {
	start := e.now()
	snap := e.quotes.Snapshot()
	tris := e.Triangles()
	if len(snap) == 0 || len(tris) == 0 {
		return
	}
	results := strategy.EvaluateAll(tris, snap, e.surfaceOpts)
	metrics.TrianglesCheckedTotal.Add(float64(len(tris)))
	for _, r := range results {
		metrics.TriangleNetBps.Observe(strategy.PercentToBps(r.ProfitPercent))
	}

	st := e.ledger.Ingest(results, e.cfg.Trading.MinProfitPercent, start)
	metrics.ArbOppsFound.Add(float64(st.Created))
	staleness := time.Duration(e.cfg.Trading.StalenessSeconds) * time.Second
	if removed := e.ledger.Sweep(start, staleness); len(removed) > 0 {
		metrics.LedgerExpiredTotal.Add(float64(len(removed)))
		e.logger.Debug().Strs("triangles", removed).Msg("stale opportunities dropped")
	}
	e.observeLedger()

	if e.cfg.Trading.Enabled {
		e.dispatch(ctx, snap)
	}
	metrics.SurfaceTickLatencyMs.Observe(float64(e.now().Sub(start).Microseconds()) / 1000)
}

func (e *Engine) observeLedger() {
	counts := map[ledger.Status]int{}
	for _, v := range e.ledger.Snapshot() {
		counts[v.Status]++
	}
	for _, s := range []ledger.Status{
		ledger.StatusPending, ledger.StatusDepthCheck, ledger.StatusReadyToTrade,
		ledger.StatusTrading, ledger.StatusCompleted, ledger.StatusForbidden,
	} {
		metrics.LedgerSize.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// dispatch starts a verify-then-execute task for each eligible opportunity
// while capital slots are free. The slot is taken before the depth check so
// an accepted opportunity never waits on capital.
func (e *Engine) dispatch(ctx context.Context, quotes map[string]orderbook.BookTicker) {
	for _, o := range e.ledger.Eligible(e.cfg.Trading.TradeMinProfitPercent) {
		if !e.gate.TryAcquire() {
			metrics.CapitalBlocksTotal.Inc()
			e.logger.Debug().Str("triangle", o.Key()).Int("in_use", e.gate.InUse()).Msg("no capital slot free")
			return
		}
		e.tasks.Add(1)
		go e.attempt(ctx, o, quotes)
	}
}

func (e *Engine) attempt(ctx context.Context, o *ledger.Opportunity, quotes map[string]orderbook.BookTicker) {
	defer e.tasks.Done()
	defer e.gate.Release()
	l := e.logger.With().Str("triangle", o.Key()).Logger()

	if _, err := e.verifier.Verify(ctx, o, quotes); err != nil {
		if !errors.Is(err, ledger.ErrNotEligible) {
			l.Debug().Err(err).Msg("not traded")
		}
		return
	}
	rep, err := e.seq.Execute(ctx, o, e.quotes.Snapshot())
	if err != nil {
		l.Error().Err(err).Str("run", rep.RunID).Msg("execution failed")
		return
	}
	l.Info().
		Str("run", rep.RunID).
		Float64("profit_usd", rep.ProfitUSD).
		Float64("realized_usd", e.tracker.RealizedUSD()).
		Msg("execution finished")
}

// report publishes the best ledger entries to the operator channel.
func (e *Engine) report(ctx context.Context) {
	views := e.ledger.Snapshot()
	if len(views) == 0 {
		return
	}
	n := min(e.cfg.Trading.ReportTop, len(views))
	if n <= 0 {
		n = len(views)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d opportunities, realized %.4f USD\n", len(views), e.tracker.RealizedUSD())
	for _, v := range views[:n] {
		fmt.Fprintf(&b, "%s %s %.4f%% [%s] since %s\n",
			v.Key, v.Latest.Direction, v.Latest.ProfitPercent, v.Status, v.StartDate.Format(time.RFC3339))
	}
	if _, err := e.notifier.Publish(ctx, notify.Message{Key: "report", Text: b.String()}); err != nil {
		e.logger.Debug().Err(err).Msg("report not published")
	}
}
