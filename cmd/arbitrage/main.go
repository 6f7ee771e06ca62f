package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"triarb/internal/api/rest"
	"triarb/internal/arbitrage"
	"triarb/internal/backtest"
	"triarb/internal/config"
	"triarb/internal/exchange/binance"
	"triarb/internal/exchange/common"
	"triarb/internal/exchange/paper"
	"triarb/internal/graph"
	"triarb/internal/infra/health"
	"triarb/internal/infra/http/middleware"
	"triarb/internal/infra/log"
	"triarb/internal/infra/metrics"
	"triarb/internal/infra/netutil"
	"triarb/internal/infra/runner"
	"triarb/internal/infra/version"
	"triarb/internal/notify"
	"triarb/internal/orderbook"
	"triarb/internal/pricing"
	"triarb/internal/store"
	"triarb/internal/strategy"
)

func main() {
	backtestCSV := flag.String("backtest", "", "replay a book ticker CSV and exit")
	flag.Parse()

	// optional .env for local runs; real environment wins
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	if *backtestCSV != "" {
		cfg.Backtest.CSV = *backtestCSV
	}
	logger := log.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.Backtest.CSV != "" {
		os.Exit(runBacktest(cfg, logger))
	}

	// Init metrics and start HTTP endpoint
	registry := metrics.Init(logger)

	md := binance.New(cfg, logger)
	quotes := orderbook.NewTickers()
	index := common.NewSymbolIndex()
	var trader common.Trader = md
	if !cfg.Trading.Live {
		trader = paper.New(md, quotes, index.Assets, cfg.Trading.CommissionBps/10000, logger)
	}

	st, err := store.Open(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store unavailable")
	}
	defer func() { _ = st.Close() }()

	eng := arbitrage.New(cfg, arbitrage.Deps{
		MarketData: md,
		Trader:     trader,
		Quotes:     quotes,
		Index:      index,
		Store:      st,
		Notifier:   notify.LogNotifier{Logger: log.Component(logger, "notify")},
	}, log.Component(logger, "engine"))

	mux := http.NewServeMux()
	// admin endpoints (metrics, pprof) behind IP allowlist gate
	adminCIDRs, invalid := netutil.ParseCIDRs(cfg.Server.AdminAllowCIDRs)
	if len(invalid) > 0 {
		logger.Warn().Strs("cidrs", invalid).Msg("ignoring invalid admin CIDRs")
	}
	mux.Handle("/metrics", middleware.AdminGate(adminCIDRs, metrics.Handler(registry)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	mux.Handle("/", rest.New(eng).Handler())
	if cfg.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Trace)))
	}

	// wrap mux with middlewares (request id and logging)
	handler := middleware.RequestID(middleware.Logger(logger)(mux))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Bool("trading", cfg.Trading.Enabled).
		Bool("live", cfg.Trading.Live).
		Str("store", cfg.Store.Driver).
		Str("version", version.Version).
		Msg("Triangular arbitrage service started")

	g := &runner.Group{}
	workerErrCh := g.Go(ctx, eng.Run)

	// ready once the engine reports universe and quotes
	health.SetReady(true)

	// Wait for termination signals or worker error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
	case err := <-workerErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("worker error")
		}
	}

	// mark not ready before shutdown
	health.SetReady(false)
	cancel()
	g.Wait()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Float64("realized_usd", eng.Tracker().RealizedUSD()).Msg("shutdown complete")
}

func runBacktest(cfg config.Config, logger log.Logger) int {
	t := cfg.Trading
	valuer := pricing.NewValuer(t.Stables, t.Bridges)
	rep, err := backtest.RunFile(cfg.Backtest.CSV, backtest.Options{
		Graph: graph.Options{
			StableAnchored: t.StableAnchored,
			Stables:        t.Stables,
			Blacklist:      t.Blacklist,
			Whitelist:      t.Whitelist,
			MaxSymbols:     t.MaxSymbols,
			Preferred:      append(append([]string(nil), t.Stables...), t.Bridges...),
		},
		Surface: strategy.Options{
			Commission:       strategy.NewCommissions(t.CommissionBps, t.CommissionExempt).Rate,
			MinProfitPercent: t.MinProfitPercent,
			StableAnchored:   t.StableAnchored,
			Stables:          valuer.Stables(),
		},
		Threshold:  t.MinProfitPercent,
		Staleness:  time.Duration(t.StalenessSeconds) * time.Second,
		MaxHistory: t.MaxHistory,
	})
	if err != nil {
		logger.Error().Err(err).Str("csv", cfg.Backtest.CSV).Msg("backtest failed")
		return 1
	}
	fmt.Println(rep.String())
	return 0
}
