package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SurfaceTickLatencyMs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "surface_tick_latency_ms", Help: "Surface rate tick duration", Buckets: prometheus.LinearBuckets(1, 5, 20)})
	OrderSubmitLatencyMs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "order_submit_latency_ms", Help: "Order submit latency", Buckets: prometheus.LinearBuckets(1, 10, 20)})
	TickOverrunsTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tick_overruns_total", Help: "Scheduled ticks that started late by loop"}, []string{"loop"})

	TrianglesEnumerated = prometheus.NewGauge(prometheus.GaugeOpts{Name: "triangles_enumerated", Help: "Triangles in the current universe"})
	SymbolsTradeable    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "symbols_tradeable", Help: "Symbols considered by the enumerator"})
	QuotesCached        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "quotes_cached", Help: "Book tickers in the live cache"})

	ArbOppsFound            = prometheus.NewCounter(prometheus.CounterOpts{Name: "arbitrage_opportunities_found"})
	ArbOppsExecuted         = prometheus.NewCounter(prometheus.CounterOpts{Name: "arbitrage_opportunities_executed"})
	TrianglesCheckedTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "triangles_checked_total", Help: "Total triangles evaluated"})
	TrianglesAttemptedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "triangles_attempted_total", Help: "Total triangles attempted"})
	LedgerSize              = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "ledger_opportunities", Help: "Opportunities in the ledger by status"}, []string{"status"})
	LedgerExpiredTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_expired_total", Help: "Opportunities dropped as stale"})
	DepthChecksTotal        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "depth_checks_total", Help: "Depth verification outcomes"}, []string{"outcome"})
	CapitalBlocksTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "capital_blocks_total", Help: "Eligible opportunities skipped because capital was in use"})

	OrdersSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Total orders submitted"})
	OrdersFilledTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_filled_total", Help: "Total orders filled (acknowledged)"})
	RejectedOrders       = prometheus.NewCounter(prometheus.CounterOpts{Name: "rejected_orders"})
	APIErrorsTotal       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "api_errors_total", Help: "API errors by exchange and endpoint"}, []string{"exchange", "endpoint"})
	WSReconnectsTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ws_reconnects_total", Help: "WS reconnects by exchange and reason"}, []string{"exchange", "reason"})

	TriangleNetBps      = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "triangle_net_bps", Help: "Net bps of surviving surface results", Buckets: prometheus.LinearBuckets(-50, 5, 41)})
	NetProfitUSD        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "net_profit_usd"})
	RealizedSlippageBps = prometheus.NewGauge(prometheus.GaugeOpts{Name: "realized_slippage_bps", Help: "Adverse slippage of the last filled leg"})

	// Triangle quality metrics
	TrianglesOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triangles_outcome_total", Help: "Triangle execution outcomes by triangle and outcome"},
		[]string{"triangle", "outcome"},
	)
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		SurfaceTickLatencyMs, OrderSubmitLatencyMs, TickOverrunsTotal,
		TrianglesEnumerated, SymbolsTradeable, QuotesCached,
		ArbOppsFound, ArbOppsExecuted, TrianglesCheckedTotal, TrianglesAttemptedTotal,
		LedgerSize, LedgerExpiredTotal, DepthChecksTotal, CapitalBlocksTotal,
		OrdersSubmittedTotal, OrdersFilledTotal, RejectedOrders, APIErrorsTotal, WSReconnectsTotal,
		TriangleNetBps, NetProfitUSD, RealizedSlippageBps, TrianglesOutcomeTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
