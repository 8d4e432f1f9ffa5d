package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Clock is an HH:MM wall-clock time in the session timezone.
type Clock struct {
	Hour, Minute int
}

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns the clock time on the calendar date of day.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) MarshalYAML() (any, error) { return c.String(), nil }

func (c *Clock) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Session struct {
	MarketOpen      Clock  `yaml:"market_open"`
	MarketClose     Clock  `yaml:"market_close"`
	BiasCandleStart Clock  `yaml:"bias_candle_start"`
	BiasCandleEnd   Clock  `yaml:"bias_candle_end"`
	EntryCutoff     Clock  `yaml:"entry_cutoff"`
	EODExit         Clock  `yaml:"eod_exit"`
	Timezone        string `yaml:"timezone"`
}

type Config struct {
	Mode           string `yaml:"mode"`
	Underlying     string `yaml:"underlying"`
	SpotSymbol     string `yaml:"spot_symbol"`
	SpotToken      int    `yaml:"spot_token"`
	OptionExchange string `yaml:"option_exchange"`
	OptionSegment  string `yaml:"option_segment"`

	LotSize               int           `yaml:"lot_size"`
	Lots                  int           `yaml:"lots"`
	MaxDailyTrades        int           `yaml:"max_daily_trades"`
	PivotBufferPoints     float64       `yaml:"pivot_buffer_points"`
	StrikeStep            int           `yaml:"strike_step"`
	ExpiryWindowDays      int           `yaml:"expiry_window_days"`
	StopLossPct           float64       `yaml:"stop_loss_pct"`
	ProfitTargetPct       float64       `yaml:"profit_target_pct"`
	EntryConfirmDelay     time.Duration `yaml:"entry_confirm_delay"`
	MaxEntryDivergencePct float64       `yaml:"max_entry_divergence_pct"`

	Session Session `yaml:"session"`

	Fetch struct {
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"fetch"`
	Breaker struct {
		Threshold int           `yaml:"threshold"`
		Cooldown  time.Duration `yaml:"cooldown"`
	} `yaml:"breaker"`
	Ranges struct {
		SpotMin   float64 `yaml:"spot_min"`
		SpotMax   float64 `yaml:"spot_max"`
		OptionMin float64 `yaml:"option_min"`
		OptionMax float64 `yaml:"option_max"`
	} `yaml:"ranges"`

	Holidays []string `yaml:"holidays"`

	Loop struct {
		ClosedSleep       time.Duration `yaml:"closed_sleep"`
		ScanSleep         time.Duration `yaml:"scan_sleep"`
		MonitorSleep      time.Duration `yaml:"monitor_sleep"`
		PivotRetrySleep   time.Duration `yaml:"pivot_retry_sleep"`
		ErrorBackoff      time.Duration `yaml:"error_backoff"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	} `yaml:"loop"`

	Dashboard struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr"`
		MaxEvents int    `yaml:"max_events"`
		MaxTrades int    `yaml:"max_trades"`
	} `yaml:"dashboard"`

	Journal struct {
		Dir           string `yaml:"dir"`
		SQLitePath    string `yaml:"sqlite_path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
}

// NSE trading holidays for 2026.
var DefaultHolidays = []string{
	"2026-01-15", "2026-01-26", "2026-03-03", "2026-03-26",
	"2026-03-31", "2026-04-03", "2026-04-14", "2026-05-01",
	"2026-05-28", "2026-06-26", "2026-09-14", "2026-10-02",
	"2026-10-20", "2026-11-10", "2026-11-24", "2026-12-25",
}

// Default returns a config with every field at its default value.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	setStr := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	setInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}
	setF := func(p *float64, v float64) {
		if *p == 0 {
			*p = v
		}
	}
	setDur := func(p *time.Duration, v time.Duration) {
		if *p == 0 {
			*p = v
		}
	}
	setClock := func(p *Clock, h, m int) {
		if *p == (Clock{}) {
			*p = Clock{Hour: h, Minute: m}
		}
	}

	setStr(&c.Mode, "PAPER")
	setStr(&c.Underlying, "NIFTY")
	setStr(&c.SpotSymbol, "NSE:NIFTY 50")
	setInt(&c.SpotToken, 256265)
	setStr(&c.OptionExchange, "NFO")
	setStr(&c.OptionSegment, "NFO-OPT")

	setInt(&c.LotSize, 65)
	setInt(&c.Lots, 1)
	setInt(&c.MaxDailyTrades, 2)
	setF(&c.PivotBufferPoints, 25)
	setInt(&c.StrikeStep, 100)
	setInt(&c.ExpiryWindowDays, 7)
	setF(&c.StopLossPct, 0.10)
	setF(&c.ProfitTargetPct, 0.10)
	setDur(&c.EntryConfirmDelay, 500*time.Millisecond)
	setF(&c.MaxEntryDivergencePct, 0.05)

	setClock(&c.Session.MarketOpen, 9, 15)
	setClock(&c.Session.MarketClose, 15, 30)
	setClock(&c.Session.BiasCandleStart, 9, 15)
	setClock(&c.Session.BiasCandleEnd, 9, 20)
	setClock(&c.Session.EntryCutoff, 15, 20)
	setClock(&c.Session.EODExit, 15, 20)
	setStr(&c.Session.Timezone, "Asia/Kolkata")

	setInt(&c.Fetch.MaxRetries, 3)
	setDur(&c.Fetch.RetryDelay, 2*time.Second)
	setInt(&c.Breaker.Threshold, 5)
	setDur(&c.Breaker.Cooldown, 300*time.Second)

	setF(&c.Ranges.SpotMin, 15000)
	setF(&c.Ranges.SpotMax, 30000)
	setF(&c.Ranges.OptionMin, 1)
	setF(&c.Ranges.OptionMax, 1000)

	if c.Holidays == nil {
		c.Holidays = append([]string(nil), DefaultHolidays...)
	}

	setDur(&c.Loop.ClosedSleep, 300*time.Second)
	setDur(&c.Loop.ScanSleep, 30*time.Second)
	setDur(&c.Loop.MonitorSleep, 5*time.Second)
	setDur(&c.Loop.PivotRetrySleep, 60*time.Second)
	setDur(&c.Loop.ErrorBackoff, 30*time.Second)
	setDur(&c.Loop.HeartbeatInterval, 600*time.Second)

	setStr(&c.Dashboard.Addr, "127.0.0.1:5000")
	setInt(&c.Dashboard.MaxEvents, 200)
	setInt(&c.Dashboard.MaxTrades, 100)

	setStr(&c.Journal.Dir, "logs")
}

func (c *Config) Validate() error {
	if c.Mode != "PAPER" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'PAPER' or 'LIVE'", c.Mode)
	}
	if c.Mode == "LIVE" && c.Lots > 1 {
		return fmt.Errorf("lots must be 1 in LIVE mode, got %d", c.Lots)
	}
	if c.LotSize <= 0 || c.Lots <= 0 {
		return fmt.Errorf("lot_size and lots must be positive, got %d and %d", c.LotSize, c.Lots)
	}
	if c.MaxDailyTrades <= 0 {
		return fmt.Errorf("max_daily_trades must be positive, got %d", c.MaxDailyTrades)
	}
	if c.StrikeStep <= 0 {
		return fmt.Errorf("strike_step must be positive, got %d", c.StrikeStep)
	}
	if c.PivotBufferPoints < 0 {
		return fmt.Errorf("pivot_buffer_points must not be negative, got %.2f", c.PivotBufferPoints)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be between 0-1, got %.4f", c.StopLossPct)
	}
	if c.ProfitTargetPct <= 0 {
		return fmt.Errorf("profit_target_pct must be positive, got %.4f", c.ProfitTargetPct)
	}
	if c.Fetch.MaxRetries < 1 {
		return errors.New("fetch.max_retries must be at least 1")
	}
	if c.Breaker.Threshold < 1 {
		return errors.New("breaker.threshold must be at least 1")
	}
	if c.Ranges.SpotMin >= c.Ranges.SpotMax {
		return fmt.Errorf("ranges: spot_min %.2f must be below spot_max %.2f", c.Ranges.SpotMin, c.Ranges.SpotMax)
	}
	if c.Ranges.OptionMin >= c.Ranges.OptionMax {
		return fmt.Errorf("ranges: option_min %.2f must be below option_max %.2f", c.Ranges.OptionMin, c.Ranges.OptionMax)
	}
	s := c.Session
	if !s.MarketOpen.Before(s.MarketClose) {
		return fmt.Errorf("session: market_open %s must be before market_close %s", s.MarketOpen, s.MarketClose)
	}
	if !s.BiasCandleStart.Before(s.BiasCandleEnd) {
		return fmt.Errorf("session: bias_candle_start %s must be before bias_candle_end %s", s.BiasCandleStart, s.BiasCandleEnd)
	}
	if s.MarketClose.Before(s.EODExit) {
		return fmt.Errorf("session: eod_exit %s must not be after market_close %s", s.EODExit, s.MarketClose)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, h := range c.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("invalid holiday %q: %w", h, err)
		}
	}
	return nil
}

// Before reports whether c is strictly earlier in the day than o.
func (c Clock) Before(o Clock) bool {
	if c.Hour != o.Hour {
		return c.Hour < o.Hour
	}
	return c.Minute < o.Minute
}

// Location resolves the session timezone, falling back to a fixed IST
// offset when the tz database is not installed.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err == nil {
		return loc, nil
	}
	if c.Session.Timezone == "Asia/Kolkata" {
		return time.FixedZone("IST", 19800), nil
	}
	return nil, fmt.Errorf("session: unknown timezone %q: %w", c.Session.Timezone, err)
}

// Quantity is the number of units per trade.
func (c *Config) Quantity() int { return c.LotSize * c.Lots }

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
