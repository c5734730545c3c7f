// File: pkg/types/models.go
// ============================================
package types

import "time"

// Config represents the bot configuration
type Config struct {
	Binance struct {
		APIKey    string `yaml:"api_key"`
		SecretKey string `yaml:"secret_key"`
		Testnet   bool   `yaml:"testnet"`
	} `yaml:"binance"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Enabled  bool   `yaml:"enabled"`
	} `yaml:"telegram"`

	Strategy struct {
		Symbol         string  `yaml:"symbol"`
		BaseAsset      string  `yaml:"base_asset"`
		QuoteAsset     string  `yaml:"quote_asset"`
		CandleInterval string  `yaml:"candle_interval"`
		BookDepth      int     `yaml:"book_depth"`
		ImbalanceRatio float64 `yaml:"imbalance_ratio"`
		CycleSeconds   int     `yaml:"cycle_seconds"`
		QuoteMinimum   float64 `yaml:"quote_minimum"`
		DustThreshold  float64 `yaml:"dust_threshold"`
		FeePercent     float64 `yaml:"fee_percent"`
		ReportMinutes  int     `yaml:"report_minutes"`
	} `yaml:"strategy"`

	Risk struct {
		Tiers []VolatilityTier `yaml:"tiers"`
	} `yaml:"risk"`

	FX struct {
		Symbol        string `yaml:"symbol"`
		LocalCurrency string `yaml:"local_currency"`
		TTLMinutes    int    `yaml:"ttl_minutes"`
	} `yaml:"fx"`

	Stream struct {
		Enabled      bool `yaml:"enabled"`
		StaleSeconds int  `yaml:"stale_seconds"`
	} `yaml:"stream"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

// ApplyDefaults fills in zero values with the defaults the bot was tuned on.
// Boundary magnitudes (imbalance ratio, volatility tiers) are configuration,
// not protocol constants.
func (c *Config) ApplyDefaults() {
	s := &c.Strategy
	if s.Symbol == "" {
		s.Symbol = "BTCUSDT"
	}
	if s.BaseAsset == "" {
		s.BaseAsset = "BTC"
	}
	if s.QuoteAsset == "" {
		s.QuoteAsset = "USDT"
	}
	if s.CandleInterval == "" {
		s.CandleInterval = "1m"
	}
	if s.BookDepth == 0 {
		s.BookDepth = 5
	}
	if s.ImbalanceRatio == 0 {
		s.ImbalanceRatio = 1.5
	}
	if s.CycleSeconds == 0 {
		s.CycleSeconds = 10
	}
	if s.QuoteMinimum == 0 {
		s.QuoteMinimum = 10
	}
	if s.DustThreshold == 0 {
		s.DustThreshold = 0.0001
	}
	if s.FeePercent == 0 {
		s.FeePercent = 0.1
	}
	if s.ReportMinutes == 0 {
		s.ReportMinutes = 60
	}
	if len(c.Risk.Tiers) == 0 {
		c.Risk.Tiers = DefaultVolatilityTiers()
	}
	if c.FX.Symbol == "" {
		c.FX.Symbol = "USDTBRL"
	}
	if c.FX.LocalCurrency == "" {
		c.FX.LocalCurrency = "BRL"
	}
	if c.FX.TTLMinutes == 0 {
		c.FX.TTLMinutes = 5
	}
	if c.Stream.StaleSeconds == 0 {
		c.Stream.StaleSeconds = 5
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// VolatilityTier maps a candle-range band to the risk thresholds used while
// the band is active. Tiers are matched top-down: the first tier whose
// MinRange is exceeded wins.
type VolatilityTier struct {
	MinRange        float64 `yaml:"min_range"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TrailingStopPct float64 `yaml:"trailing_stop_pct"`
}

// DefaultVolatilityTiers returns the tiers tuned for BTCUSDT quote scale.
func DefaultVolatilityTiers() []VolatilityTier {
	return []VolatilityTier{
		{MinRange: 100, TakeProfitPct: 2.0, StopLossPct: 1.5, TrailingStopPct: 1.0},
		{MinRange: 50, TakeProfitPct: 1.5, StopLossPct: 1.0, TrailingStopPct: 0.8},
		{MinRange: 0, TakeProfitPct: 1.0, StopLossPct: 0.7, TrailingStopPct: 0.5},
	}
}

// RiskParams are the active exit thresholds, recalibrated every cycle.
type RiskParams struct {
	TakeProfitPct   float64
	StopLossPct     float64
	TrailingStopPct float64
}

type BookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook holds the top bid and ask levels, best price first.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

func (b OrderBook) TotalBidQty() float64 {
	total := 0.0
	for _, l := range b.Bids {
		total += l.Quantity
	}
	return total
}

func (b OrderBook) TotalAskQty() float64 {
	total := 0.0
	for _, l := range b.Asks {
		total += l.Quantity
	}
	return total
}

type Candle struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Valid reports whether the candle satisfies low <= min(open, close) and
// max(open, close) <= high.
func (c Candle) Valid() bool {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && hi <= c.High
}

// Range is the high-low span used for volatility recalibration.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Balances are the free account balances for the traded pair.
type Balances struct {
	Base  float64
	Quote float64
}

// LotSizeRule is the exchange-imposed order-quantity granularity for a symbol.
type LotSizeRule struct {
	StepSize    float64
	MinQty      float64
	MinNotional float64
}

type Trade struct {
	Symbol     string
	Side       string
	Quantity   float64
	Price      float64
	Commission float64
	Timestamp  time.Time
	OrderID    string
}
