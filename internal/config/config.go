package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Network struct {
		Region             string `yaml:"region"`
		WSKeepAliveSeconds int    `yaml:"ws_keepalive_seconds"`
	} `yaml:"network"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Addr                string   `yaml:"addr"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs"`
	} `yaml:"server"`
	Trading struct {
		// Enabled turns on auto-trading of eligible opportunities; detection
		// always runs.
		Enabled bool `yaml:"enabled"`
		// Live routes orders to the exchange; otherwise the paper adapter fills them.
		Live   bool `yaml:"live"`
		Stream bool `yaml:"stream"`

		StableAnchored   bool     `yaml:"stable_anchored"`
		Stables          []string `yaml:"stables"`
		Bridges          []string `yaml:"bridges"`
		Blacklist        []string `yaml:"blacklist"`
		Whitelist        []string `yaml:"whitelist"`
		MaxSymbols       int      `yaml:"max_symbols"`
		CommissionBps    float64  `yaml:"commission_bps"`
		CommissionExempt []string `yaml:"commission_exempt"`

		// MinProfitPercent is the surface floor; TradeMinProfitPercent is the
		// bar an opportunity has to clear before the depth check.
		MinProfitPercent      float64 `yaml:"min_profit_percent"`
		TradeMinProfitPercent float64 `yaml:"trade_min_profit_percent"`

		EnumerateIntervalSeconds int `yaml:"enumerate_interval_seconds"`
		QuoteRefreshMs           int `yaml:"quote_refresh_ms"`
		SurfaceIntervalMs        int `yaml:"surface_interval_ms"`
		MaxTickLagMs             int `yaml:"max_tick_lag_ms"`
		StalenessSeconds         int `yaml:"staleness_seconds"`
		MaxHistory               int `yaml:"max_history"`
		ReportIntervalSeconds    int `yaml:"report_interval_seconds"`
		ReportTop                int `yaml:"report_top"`

		DepthLimit         int     `yaml:"depth_limit"`
		MinStableValue     float64 `yaml:"min_stable_value"`
		SizeMultiplier     float64 `yaml:"size_multiplier"`
		MaxSlippagePercent float64 `yaml:"max_slippage_percent"`
		NotionalMultiplier float64 `yaml:"notional_multiplier"`
		MaxConcurrent      int     `yaml:"max_concurrent"`
		MaxNotionalUSD     float64 `yaml:"max_notional_usd"`
	} `yaml:"trading"`
	Exchanges struct {
		Binance struct {
			BaseURL           string  `yaml:"base_url"`
			WSURL             string  `yaml:"ws_url"`
			APIKey            string  `yaml:"api_key"`
			Secret            string  `yaml:"secret"`
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"binance"`
	} `yaml:"exchanges"`
	Store struct {
		Driver        string `yaml:"driver"` // none, redis, sqlite
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		SQLitePath    string `yaml:"sqlite_path"`
		TTLSeconds    int    `yaml:"ttl_seconds"`
	} `yaml:"store"`
	Backtest struct {
		CSV string `yaml:"csv"`
	} `yaml:"backtest"`
}

func defaultConfig() Config {
	var c Config
	c.Network.Region = "EU-West"
	c.Network.WSKeepAliveSeconds = 15
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Trading.Enabled = false
	c.Trading.Live = false
	c.Trading.Stream = true
	c.Trading.StableAnchored = false
	c.Trading.Stables = []string{"USDT", "BUSD", "USDC", "TUSD", "FDUSD"}
	c.Trading.Bridges = []string{"BTC", "ETH", "BNB"}
	c.Trading.MaxSymbols = 0
	c.Trading.CommissionBps = 7.5
	c.Trading.MinProfitPercent = -0.2
	c.Trading.TradeMinProfitPercent = 0.1
	c.Trading.EnumerateIntervalSeconds = 300
	c.Trading.QuoteRefreshMs = 1000
	c.Trading.SurfaceIntervalMs = 100
	c.Trading.MaxTickLagMs = 50
	c.Trading.StalenessSeconds = 15
	c.Trading.MaxHistory = 600
	c.Trading.ReportIntervalSeconds = 30
	c.Trading.ReportTop = 5
	c.Trading.DepthLimit = 20
	c.Trading.MinStableValue = 10
	c.Trading.SizeMultiplier = 5
	c.Trading.MaxSlippagePercent = 0.2
	c.Trading.NotionalMultiplier = 2
	c.Trading.MaxConcurrent = 1
	c.Trading.MaxNotionalUSD = 50.0
	c.Exchanges.Binance.BaseURL = "https://api.binance.com"
	c.Exchanges.Binance.WSURL = "wss://stream.binance.com:9443/ws/!bookTicker"
	c.Exchanges.Binance.RequestsPerSecond = 10
	c.Exchanges.Binance.Burst = 20
	c.Store.Driver = "none"
	c.Store.RedisAddr = "127.0.0.1:6379"
	c.Store.SQLitePath = "triarb.db"
	c.Store.TTLSeconds = 3600
	return c
}

func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("TRIARB_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	if v := os.Getenv("TRIARB_REGION"); v != "" {
		c.Network.Region = v
	}
	if v := os.Getenv("TRIARB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TRIARB_LOG_PRETTY"); v != "" {
		c.Logging.Pretty = truthy(v)
	}
	if v := os.Getenv("TRIARB_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TRIARB_PPROF"); truthy(v) {
		c.Server.Pprof = true
	}
	if v := os.Getenv("TRIARB_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("TRIARB_TRADING_ENABLED"); truthy(v) {
		c.Trading.Enabled = true
	}
	if v := os.Getenv("TRIARB_TRADING_LIVE"); truthy(v) {
		c.Trading.Live = true
	}
	if v := os.Getenv("TRIARB_STREAM"); v != "" {
		c.Trading.Stream = truthy(v)
	}
	if v := os.Getenv("TRIARB_STABLE_ANCHORED"); v != "" {
		c.Trading.StableAnchored = truthy(v)
	}
	if v := os.Getenv("TRIARB_STABLES"); v != "" {
		c.Trading.Stables = splitCSV(v)
	}
	if v := os.Getenv("TRIARB_BLACKLIST"); v != "" {
		c.Trading.Blacklist = splitCSV(v)
	}
	if v := os.Getenv("TRIARB_WHITELIST"); v != "" {
		c.Trading.Whitelist = splitCSV(v)
	}
	if v := os.Getenv("TRIARB_MAX_SYMBOLS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n >= 0 {
			c.Trading.MaxSymbols = n
		}
	}
	if v := os.Getenv("TRIARB_MIN_PROFIT_PERCENT"); v != "" {
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			c.Trading.MinProfitPercent = f
		}
	}
	if v := os.Getenv("TRIARB_TRADE_MIN_PROFIT_PERCENT"); v != "" {
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			c.Trading.TradeMinProfitPercent = f
		}
	}
	if v := os.Getenv("TRIARB_MAX_NOTIONAL_USD"); v != "" {
		var f float64
		_, _ = fmt.Sscan(v, &f)
		if f > 0 {
			c.Trading.MaxNotionalUSD = f
		}
	}
	// API keys only from env
	if v := os.Getenv("TRIARB_BINANCE_API_KEY"); v != "" {
		c.Exchanges.Binance.APIKey = v
	}
	if v := os.Getenv("TRIARB_BINANCE_SECRET"); v != "" {
		c.Exchanges.Binance.Secret = v
	}
	// Allow overriding the base URL to switch between testnet and mainnet easily
	if v := os.Getenv("TRIARB_BINANCE_BASE_URL"); v != "" {
		c.Exchanges.Binance.BaseURL = v
	}
	if v := os.Getenv("TRIARB_BINANCE_WS_URL"); v != "" {
		c.Exchanges.Binance.WSURL = v
	}
	if v := os.Getenv("TRIARB_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("TRIARB_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv("TRIARB_REDIS_PASSWORD"); v != "" {
		c.Store.RedisPassword = v
	}
	if v := os.Getenv("TRIARB_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("TRIARB_BACKTEST_CSV"); v != "" {
		c.Backtest.CSV = v
	}
	return c
}

// Validate reports the first setting the service cannot run with.
func (c Config) Validate() error {
	t := c.Trading
	switch {
	case len(t.Stables) == 0:
		return errors.New("trading.stables must not be empty")
	case t.CommissionBps < 0 || t.CommissionBps >= 10000:
		return fmt.Errorf("trading.commission_bps out of range: %v", t.CommissionBps)
	case t.TradeMinProfitPercent < t.MinProfitPercent:
		return fmt.Errorf("trading.trade_min_profit_percent %v below surface floor %v", t.TradeMinProfitPercent, t.MinProfitPercent)
	case t.EnumerateIntervalSeconds <= 0:
		return errors.New("trading.enumerate_interval_seconds must be positive")
	case t.SurfaceIntervalMs <= 0:
		return errors.New("trading.surface_interval_ms must be positive")
	case t.QuoteRefreshMs <= 0:
		return errors.New("trading.quote_refresh_ms must be positive")
	case t.MaxTickLagMs < 0:
		return errors.New("trading.max_tick_lag_ms must not be negative")
	case t.StalenessSeconds <= 0:
		return errors.New("trading.staleness_seconds must be positive")
	case t.DepthLimit <= 0:
		return errors.New("trading.depth_limit must be positive")
	case t.MinStableValue <= 0 || t.SizeMultiplier <= 0 || t.NotionalMultiplier <= 0:
		return errors.New("trading sizing values must be positive")
	case t.MaxSlippagePercent < 0:
		return errors.New("trading.max_slippage_percent must not be negative")
	}
	switch strings.ToLower(c.Store.Driver) {
	case "", "none", "redis", "sqlite":
	default:
		return fmt.Errorf("store.driver unknown: %q", c.Store.Driver)
	}
	return nil
}

func truthy(v string) bool { return v == "1" || v == "true" }

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
