package orderexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triarb/internal/exchange/common"
	"triarb/internal/infra/metrics"
	"triarb/internal/ledger"
	"triarb/internal/notify"
	"triarb/internal/orderbook"
	"triarb/internal/pnl"
	"triarb/internal/pricing"
	"triarb/internal/risk"
	"triarb/internal/slippage"
	"triarb/internal/strategy"
)

var (
	ErrConstraintMissing = errors.New("exchange constraints missing")
	ErrBelowMinimum      = errors.New("order below exchange minimum")
	ErrNoStableReference = errors.New("no stable reference")
	ErrNotFilled         = errors.New("order not filled")
	ErrNotionalCap       = errors.New("cycle exceeds notional cap")
)

// Config sizes the first leg.
type Config struct {
	// NotionalMultiplier scales the exchange min notional for headroom.
	NotionalMultiplier float64
	// MinStableValue is the smallest first-leg input in stable currency.
	MinStableValue float64
}

func DefaultConfig() Config {
	return Config{NotionalMultiplier: 2, MinStableValue: 10}
}

// LegReport describes one executed market order.
type LegReport struct {
	Symbol      string
	Side        common.OrderSide
	InputAsset  string
	OutputAsset string
	// Input is the input asset available to the leg, Spent what the fill
	// consumed and Output what it returned net of in-kind commission.
	Input    float64
	OrderQty float64
	Spent    float64
	Output   float64
	Leftover float64

	LeftoverUSD   float64
	CommissionUSD float64 // paid in a third asset
	ExpectedPrice float64
	AvgPrice      float64
	AdversePct    float64
}

// Report is the reconciled result of an executed cycle.
type Report struct {
	RunID         string
	Triangle      string
	Legs          [3]LegReport
	CapitalUSD    float64
	FinalUSD      float64
	LeftoverUSD   float64
	CommissionUSD float64
	ProfitUSD     float64
	ProfitPercent float64
}

// Sequencer fires the three market orders of a ready opportunity.
type Sequencer struct {
	cfg      Config
	trader   common.Trader
	filters  common.SymbolFiltersProvider
	valuer   *pricing.Valuer
	tracker  *pnl.Tracker
	notifier notify.Notifier
	gate     *risk.Gate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewSequencer(cfg Config, trader common.Trader, filters common.SymbolFiltersProvider, valuer *pricing.Valuer, tracker *pnl.Tracker, notifier notify.Notifier, logger zerolog.Logger) *Sequencer {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Sequencer{
		cfg:      cfg,
		trader:   trader,
		filters:  filters,
		valuer:   valuer,
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// UseGate applies the gate's notional cap to first-leg sizing.
func (s *Sequencer) UseGate(g *risk.Gate) { s.gate = g }

// Execute claims opp (ready to trade -> trading) and runs the cycle on the
// result the depth check verified, not on later snapshots. Any leg
// failure marks the opportunity forbidden and stops; a partially executed
// cycle is left for manual reconciliation.
func (s *Sequencer) Execute(ctx context.Context, opp *ledger.Opportunity, quotes map[string]orderbook.BookTicker) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Triangle: opp.Key()}
	res, ok := opp.ClaimVerified()
	if !ok {
		return rep, ledger.ErrNotEligible
	}
	log := s.logger.With().Str("triangle", opp.Key()).Str("run", rep.RunID).Logger()
	metrics.TrianglesAttemptedTotal.Inc()
	s.post(ctx, opp, fmt.Sprintf("run %s: %s %s, expected %.4f%%", rep.RunID, swapsPath(res), res.Direction, res.ProfitPercent))

	input := 0.0
	for i := range res.Contracts {
		opp.SetStage(ledger.LegStarted(i))
		leg, err := s.executeLeg(ctx, res, i, input, quotes)
		rep.Legs[i] = leg
		if err != nil {
			opp.SetStage(ledger.LegError(i))
			opp.Transition(ledger.StatusTrading, ledger.StatusForbidden)
			metrics.TrianglesOutcomeTotal.WithLabelValues(opp.Key(), "failed").Inc()
			log.Error().Err(err).Int("leg", i+1).Str("symbol", leg.Symbol).Msg("leg failed")
			s.post(ctx, opp, fmt.Sprintf("leg %d %s failed: %v", i+1, res.Contracts[i], err))
			return rep, fmt.Errorf("leg %d %s: %w", i+1, res.Contracts[i], err)
		}
		if i == 0 {
			if v, ok := s.valuer.Value(leg.InputAsset, leg.Input, quotes); ok {
				rep.CapitalUSD = v
			}
		}
		rep.LeftoverUSD += leg.LeftoverUSD
		rep.CommissionUSD += leg.CommissionUSD
		opp.SetStage(ledger.LegFinished(i))
		s.post(ctx, opp, legLine(i, leg))
		input = leg.Output
	}

	final := rep.Legs[2]
	if v, ok := s.valuer.Value(final.OutputAsset, final.Output, quotes); ok {
		rep.FinalUSD = v
	}
	rep.ProfitUSD = rep.FinalUSD + rep.LeftoverUSD - rep.CapitalUSD - rep.CommissionUSD
	if rep.CapitalUSD > 0 {
		rep.ProfitPercent = rep.ProfitUSD / rep.CapitalUSD * 100
	}
	opp.Transition(ledger.StatusTrading, ledger.StatusCompleted)

	if s.tracker != nil {
		s.tracker.Record(pnl.Run{
			ID: rep.RunID, Triangle: rep.Triangle, CapitalUSD: rep.CapitalUSD,
			ProfitUSD: rep.ProfitUSD, ProfitPercent: rep.ProfitPercent, At: s.now(),
		})
		metrics.NetProfitUSD.Set(s.tracker.RealizedUSD())
	}
	metrics.ArbOppsExecuted.Inc()
	metrics.TrianglesOutcomeTotal.WithLabelValues(opp.Key(), "completed").Inc()
	log.Info().
		Float64("capital_usd", rep.CapitalUSD).
		Float64("final_usd", rep.FinalUSD).
		Float64("leftover_usd", rep.LeftoverUSD).
		Float64("commission_usd", rep.CommissionUSD).
		Float64("profit_usd", rep.ProfitUSD).
		Float64("profit_pct", rep.ProfitPercent).
		Msg("cycle completed")
	s.post(ctx, opp, fmt.Sprintf("completed: profit %.4f USD (%.4f%%), leftovers %.4f USD, commissions %.4f USD",
		rep.ProfitUSD, rep.ProfitPercent, rep.LeftoverUSD, rep.CommissionUSD))
	return rep, nil
}

func (s *Sequencer) executeLeg(ctx context.Context, res strategy.SurfaceResult, i int, input float64, quotes map[string]orderbook.BookTicker) (LegReport, error) {
	leg := LegReport{
		Symbol:        res.Contracts[i],
		InputAsset:    res.Swaps[i],
		OutputAsset:   res.Swaps[i+1],
		ExpectedPrice: res.ExpectedPrice(i),
		Side:          common.Sell,
	}
	sell := res.Directions[i] == strategy.BaseToQuote
	if !sell {
		leg.Side = common.Buy
	}

	var f common.SymbolFilters
	ok := false
	if s.filters != nil {
		f, ok = s.filters.SymbolFilters(ctx, leg.Symbol)
	}
	if !ok || !f.Complete() {
		return leg, fmt.Errorf("%w: %s", ErrConstraintMissing, leg.Symbol)
	}
	q, ok := quotes[leg.Symbol]
	if !ok || !q.Valid() {
		return leg, fmt.Errorf("%w: %s", common.ErrQuoteMissing, leg.Symbol)
	}

	if i == 0 {
		pref, err := s.preferredInput(leg.InputAsset, sell, f, q, quotes)
		if err != nil {
			return leg, err
		}
		input = pref
	}
	leg.Input = input

	// reference price: bid for a sell, ask rounded up to tick for a buy so the
	// quote budget is never overspent
	ref := q.BidPrice
	var qty float64
	if sell {
		qty, _ = RoundDown(input, f.StepSize)
	} else {
		ref = RoundUp(q.AskPrice, f.TickSize)
		qty, _ = RoundDown(input/ref, f.StepSize)
	}
	if qty <= 0 || qty < f.MinQty || qty*ref < f.MinNotional {
		return leg, fmt.Errorf("%w: %s qty %.8f notional %.8f < %.8f", ErrBelowMinimum, leg.Symbol, qty, qty*ref, f.MinNotional)
	}
	leg.OrderQty = qty

	start := s.now()
	out, err := s.trader.SubmitMarketOrder(ctx, leg.Symbol, leg.Side, qty)
	metrics.OrderSubmitLatencyMs.Observe(float64(s.now().Sub(start).Milliseconds()))
	metrics.OrdersSubmittedTotal.Inc()
	if err != nil {
		metrics.RejectedOrders.Inc()
		return leg, err
	}
	if out.ExecutedQty <= 0 {
		metrics.RejectedOrders.Inc()
		return leg, fmt.Errorf("%w: %s", ErrNotFilled, leg.Symbol)
	}
	metrics.OrdersFilledTotal.Inc()

	if sell {
		leg.Spent = out.ExecutedQty
		leg.Output = out.CumulativeQuoteQty
	} else {
		leg.Spent = out.CumulativeQuoteQty
		leg.Output = out.ExecutedQty
	}
	for _, fill := range out.Fills {
		if fill.Commission <= 0 {
			continue
		}
		if fill.CommissionAsset == leg.OutputAsset {
			leg.Output -= fill.Commission
			continue
		}
		if v, ok := s.valuer.Value(fill.CommissionAsset, fill.Commission, quotes); ok {
			leg.CommissionUSD += v
		} else {
			s.logger.Warn().Str("asset", fill.CommissionAsset).Float64("commission", fill.Commission).Msg("commission not valued")
		}
	}
	if leg.Leftover = input - leg.Spent; leg.Leftover < 0 {
		leg.Leftover = 0
	}
	if v, ok := s.valuer.Value(leg.InputAsset, leg.Leftover, quotes); ok {
		leg.LeftoverUSD = v
	}
	leg.AvgPrice = out.AvgPrice()
	side := orderbook.SellBase
	if !sell {
		side = orderbook.BuyBase
	}
	leg.AdversePct = slippage.AdversePercent(side, leg.ExpectedPrice, leg.AvgPrice)
	metrics.RealizedSlippageBps.Set(leg.AdversePct * 100)
	return leg, nil
}

// preferredInput sizes the first leg in units of its input asset: the larger
// of the scaled min notional and the minimum stable value.
func (s *Sequencer) preferredInput(asset string, sell bool, f common.SymbolFilters, q orderbook.BookTicker, quotes map[string]orderbook.BookTicker) (float64, error) {
	byNotional := f.MinNotional * s.cfg.NotionalMultiplier
	if sell {
		byNotional /= q.BidPrice
	}
	price, ok := s.valuer.Price(asset, quotes)
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoStableReference, asset)
	}
	byStable := s.cfg.MinStableValue / price
	pref := max(byNotional, byStable)
	if s.gate != nil && !s.gate.AllowNotional(pref*price) {
		return 0, fmt.Errorf("%w: %.2f USD", ErrNotionalCap, pref*price)
	}
	return pref, nil
}

func (s *Sequencer) post(ctx context.Context, opp *ledger.Opportunity, line string) {
	if err := notify.Post(ctx, s.notifier, opp, line); err != nil {
		s.logger.Debug().Err(err).Str("triangle", opp.Key()).Msg("notify failed")
	}
}

func legLine(i int, leg LegReport) string {
	return fmt.Sprintf("leg %d %s %s qty %.8g: avg %.8g vs expected %.8g (%+.4f%% adverse), received %.8g %s, leftover %.8g %s",
		i+1, leg.Side, leg.Symbol, leg.OrderQty, leg.AvgPrice, leg.ExpectedPrice, leg.AdversePct,
		leg.Output, leg.OutputAsset, leg.Leftover, leg.InputAsset)
}

func swapsPath(res strategy.SurfaceResult) string {
	return fmt.Sprintf("%s->%s->%s->%s", res.Swaps[0], res.Swaps[1], res.Swaps[2], res.Swaps[3])
}
