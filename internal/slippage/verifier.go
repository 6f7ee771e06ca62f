package slippage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"triarb/internal/exchange/common"
	"triarb/internal/infra/metrics"
	"triarb/internal/ledger"
	"triarb/internal/orderbook"
	"triarb/internal/pricing"
	"triarb/internal/strategy"
)

var (
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrSizing           = errors.New("no stable reference for sizing")
)

// Config tunes the depth check.
type Config struct {
	DepthLimit     int
	MinStableValue float64 // smallest tradable portion in stable currency
	SizeMultiplier float64 // target fill = multiplier x smallest portion
	MaxPercent     float64
}

func DefaultConfig() Config {
	return Config{DepthLimit: 20, MinStableValue: 10, SizeMultiplier: 5, MaxPercent: DefaultMaxPercent}
}

// LegCheck is the outcome for one leg.
type LegCheck struct {
	Symbol     string
	Side       orderbook.Side
	TargetQty  float64
	Expected   float64
	Fill       float64
	AdversePct float64
	OK         bool
}

// Verifier re-prices a pending opportunity against fetched depth.
type Verifier struct {
	cfg    Config
	md     common.MarketData
	valuer *pricing.Valuer
	logger zerolog.Logger
}

func NewVerifier(cfg Config, md common.MarketData, valuer *pricing.Valuer, logger zerolog.Logger) *Verifier {
	return &Verifier{cfg: cfg, md: md, valuer: valuer, logger: logger}
}

// Verify claims opp (pending -> depth check) and leaves it ready to trade,
// back in pending, or forbidden when no sizing reference exists.
func (v *Verifier) Verify(ctx context.Context, opp *ledger.Opportunity, quotes map[string]orderbook.BookTicker) ([3]LegCheck, error) {
	var checks [3]LegCheck
	if !opp.Transition(ledger.StatusPending, ledger.StatusDepthCheck) {
		return checks, ledger.ErrNotEligible
	}
	res := opp.Latest()
	log := v.logger.With().Str("triangle", opp.Key()).Logger()

	books, err := v.fetch(ctx, res.Contracts)
	if err != nil {
		opp.Transition(ledger.StatusDepthCheck, ledger.StatusPending)
		metrics.DepthChecksTotal.WithLabelValues("unavailable").Inc()
		log.Debug().Err(err).Msg("depth fetch failed")
		return checks, err
	}

	for i := range res.Contracts {
		c, err := v.checkLeg(res, i, books[i], quotes)
		checks[i] = c
		if errors.Is(err, ErrSizing) {
			opp.Transition(ledger.StatusDepthCheck, ledger.StatusForbidden)
			metrics.DepthChecksTotal.WithLabelValues("forbidden").Inc()
			log.Warn().Err(err).Str("symbol", c.Symbol).Msg("depth check forbidden")
			return checks, err
		}
		if err != nil {
			opp.Transition(ledger.StatusDepthCheck, ledger.StatusPending)
			metrics.DepthChecksTotal.WithLabelValues("rejected").Inc()
			log.Info().
				Str("symbol", c.Symbol).
				Float64("expected", c.Expected).
				Float64("fill", c.Fill).
				Float64("adverse_pct", c.AdversePct).
				Msg("depth check rejected")
			return checks, err
		}
	}

	opp.MarkVerified(res)
	metrics.DepthChecksTotal.WithLabelValues("accepted").Inc()
	log.Info().Float64("profit_pct", res.ProfitPercent).Msg("depth check accepted")
	return checks, nil
}

// fetch pulls the three books concurrently; any failure fails all.
func (v *Verifier) fetch(ctx context.Context, symbols [3]string) ([3]orderbook.Depth, error) {
	var books [3]orderbook.Depth
	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range symbols {
		g.Go(func() error {
			d, err := v.md.OrderbookDepth(gctx, sym, v.cfg.DepthLimit)
			if err != nil {
				metrics.APIErrorsTotal.WithLabelValues(v.md.Name(), "depth").Inc()
				return fmt.Errorf("depth %s: %w", sym, err)
			}
			books[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return books, err
	}
	return books, nil
}

func (v *Verifier) checkLeg(res strategy.SurfaceResult, i int, book orderbook.Depth, quotes map[string]orderbook.BookTicker) (LegCheck, error) {
	c := LegCheck{Symbol: res.Contracts[i], Expected: res.ExpectedPrice(i)}
	c.Side = orderbook.SellBase
	if res.Directions[i] == strategy.QuoteToBase {
		c.Side = orderbook.BuyBase
	}
	base := baseAsset(res, i)
	price, ok := v.valuer.Price(base, quotes)
	if !ok || price <= 0 {
		return c, fmt.Errorf("%w: %s", ErrSizing, base)
	}
	c.TargetQty = v.cfg.SizeMultiplier * v.cfg.MinStableValue / price

	if avail := book.Available(c.Side); avail < c.TargetQty {
		return c, fmt.Errorf("%w: %s book holds %.8f of %.8f", ErrSlippageExceeded, c.Symbol, avail, c.TargetQty)
	}
	fill, _, ok := book.AverageFillPrice(c.Side, c.TargetQty)
	if !ok {
		return c, fmt.Errorf("%s: empty book side", c.Symbol)
	}
	c.Fill = fill
	c.AdversePct = AdversePercent(c.Side, c.Expected, fill)
	if !Within(c.Side, c.Expected, fill, v.cfg.MaxPercent) {
		return c, fmt.Errorf("%w: %s %.4f%% > %.4f%%", ErrSlippageExceeded, c.Symbol, c.AdversePct, v.cfg.MaxPercent)
	}
	c.OK = true
	return c, nil
}

// baseAsset returns the base asset of the pair traded on leg i.
func baseAsset(res strategy.SurfaceResult, i int) string {
	if res.Directions[i] == strategy.BaseToQuote {
		return res.Swaps[i]
	}
	return res.Swaps[i+1]
}
