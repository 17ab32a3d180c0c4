package config

import (
	"fmt"

	"pb-sentinel/pkg/config"
)

// MarketData holds the quote provider settings.
type MarketData struct {
	QuoteBaseURL        string `mapstructure:"quote_base_url"`
	KlineBaseURL        string `mapstructure:"kline_base_url"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	MaxRetries          int    `mapstructure:"max_retries"`
	BackoffBaseMillis   int    `mapstructure:"backoff_base_millis"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Scanner holds background scanner settings.
type Scanner struct {
	IntervalSeconds  int    `mapstructure:"interval_seconds"`
	StalenessSeconds int    `mapstructure:"staleness_seconds"`
	HeartbeatSeconds int    `mapstructure:"heartbeat_seconds"`
	CronSchedule     string `mapstructure:"cron_schedule"`
}

// Signal holds signal engine settings.
type Signal struct {
	CooldownDays    int     `mapstructure:"cooldown_days"`
	EnableCooldown  bool    `mapstructure:"enable_cooldown"`
	MinROE          float64 `mapstructure:"min_roe"`
	EnableROEFilter bool    `mapstructure:"enable_roe_filter"`
	PercentileYears int     `mapstructure:"percentile_years"`
}

// Risk holds risk control gate ceilings, all expressed in percent of NAV.
type Risk struct {
	MaxSinglePositionPct        float64 `mapstructure:"max_single_position_pct"`
	MaxTotalPositionPct         float64 `mapstructure:"max_total_position_pct"`
	MinCashRatioPct             float64 `mapstructure:"min_cash_ratio_pct"`
	MaxIndustryConcentrationPct float64 `mapstructure:"max_industry_concentration_pct"`
	StrictIndustryCap           bool    `mapstructure:"strict_industry_cap"`
	MaxDailyTurnoverPct         float64 `mapstructure:"max_daily_turnover_pct"`
}

// IndustryTemplate is the default threshold set for one industry tag.
type IndustryTemplate struct {
	BuyPB      float64 `mapstructure:"buy_pb"`
	AddPB      float64 `mapstructure:"add_pb"`
	SellPB     float64 `mapstructure:"sell_pb"`
	TypicalROE float64 `mapstructure:"typical_roe"`
}

// Thresholds holds threshold policy settings including the typed industry
// template table. Fallback is used for industries with no template entry.
type Thresholds struct {
	RiskProfile     string                      `mapstructure:"risk_profile"`
	WindowYears     int                         `mapstructure:"window_years"`
	MinSamplePoints int                         `mapstructure:"min_sample_points"`
	Industries      map[string]IndustryTemplate `mapstructure:"industries"`
	Fallback        IndustryTemplate            `mapstructure:"fallback"`
}

// Config holds the full configuration for the sentinel service.
type Config struct {
	App        config.App      `mapstructure:"app"`
	Logger     config.Logger   `mapstructure:"logger"`
	Database   config.Database `mapstructure:"database"`
	Redis      config.Redis    `mapstructure:"redis"`
	API        config.API      `mapstructure:"api"`
	MarketData MarketData      `mapstructure:"market_data"`
	Scanner    Scanner         `mapstructure:"scanner"`
	Signal     Signal          `mapstructure:"signal"`
	Risk       Risk            `mapstructure:"risk"`
	Thresholds Thresholds      `mapstructure:"thresholds"`
}

// Load reads the sentinel configuration, applies defaults and validates the
// industry template table.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Account == "" {
		c.App.Account = "default"
	}
	if c.Scanner.IntervalSeconds == 0 {
		c.Scanner.IntervalSeconds = 3600
	}
	if c.Scanner.StalenessSeconds == 0 {
		c.Scanner.StalenessSeconds = 300
	}
	if c.Scanner.HeartbeatSeconds == 0 {
		c.Scanner.HeartbeatSeconds = 30
	}
	if c.Signal.CooldownDays == 0 {
		c.Signal.CooldownDays = 7
	}
	if c.Signal.MinROE == 0 {
		c.Signal.MinROE = 5.0
	}
	if c.Signal.PercentileYears == 0 {
		c.Signal.PercentileYears = 5
	}
	if c.Risk.MaxSinglePositionPct == 0 {
		c.Risk.MaxSinglePositionPct = 10
	}
	if c.Risk.MaxTotalPositionPct == 0 {
		c.Risk.MaxTotalPositionPct = 100
	}
	if c.Risk.MaxIndustryConcentrationPct == 0 {
		c.Risk.MaxIndustryConcentrationPct = 30
	}
	if c.Risk.MaxDailyTurnoverPct == 0 {
		c.Risk.MaxDailyTurnoverPct = 30
	}
	if c.Thresholds.RiskProfile == "" {
		c.Thresholds.RiskProfile = "moderate"
	}
	if c.Thresholds.WindowYears == 0 {
		c.Thresholds.WindowYears = 5
	}
	if c.Thresholds.MinSamplePoints == 0 {
		c.Thresholds.MinSamplePoints = 30
	}
	if c.Thresholds.Fallback == (IndustryTemplate{}) {
		c.Thresholds.Fallback = IndustryTemplate{BuyPB: 1.0, AddPB: 0.8, SellPB: 2.5, TypicalROE: 8}
	}
	if c.MarketData.TimeoutSeconds == 0 {
		c.MarketData.TimeoutSeconds = 10
	}
	if c.MarketData.MaxRetries == 0 {
		c.MarketData.MaxRetries = 3
	}
	if c.MarketData.BackoffBaseMillis == 0 {
		c.MarketData.BackoffBaseMillis = 500
	}
	if c.MarketData.MaxRequestPerMinute == 0 {
		c.MarketData.MaxRequestPerMinute = 60
	}
}

func (c *Config) validate() error {
	switch c.Thresholds.RiskProfile {
	case "conservative", "moderate", "aggressive":
	default:
		return fmt.Errorf("unknown risk profile %q", c.Thresholds.RiskProfile)
	}
	check := func(name string, t IndustryTemplate) error {
		if t.BuyPB <= 0 || t.AddPB <= 0 || t.SellPB <= 0 {
			return fmt.Errorf("industry template %q has non-positive levels", name)
		}
		if t.AddPB > t.BuyPB || t.BuyPB >= t.SellPB {
			return fmt.Errorf("industry template %q violates add <= buy < sell", name)
		}
		return nil
	}
	if err := check("fallback", c.Thresholds.Fallback); err != nil {
		return err
	}
	for name, tpl := range c.Thresholds.Industries {
		if err := check(name, tpl); err != nil {
			return err
		}
	}
	return nil
}
