package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pivot-itm-bot/internal/breaker"
	"pivot-itm-bot/internal/calendar"
	"pivot-itm-bot/internal/dashboard"
	"pivot-itm-bot/internal/fetch"
	"pivot-itm-bot/internal/instruments"
	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/metrics"
	"pivot-itm-bot/internal/store"
	"pivot-itm-bot/internal/strategy"
	"pivot-itm-bot/internal/types"
)

// Tick phases.
const (
	PhaseClosed     = "closed"
	PhasePivotRetry = "pivot_retry"
	PhaseMonitor    = "monitor"
	PhaseIdle       = "idle"
	PhaseScan       = "scan"
	PhaseEntered    = "entered"
	PhaseError      = "error"
)

// pivotLookbackDays covers long weekends plus a holiday before today.
const pivotLookbackDays = 10

// Engine is the day orchestrator. It owns the DaySession and the position
// lifecycle and runs one guarded decision pass per Tick.
type Engine struct {
	cfg      *store.Config
	cal      *calendar.Calendar
	md       interfaces.MarketData
	resolver *instruments.Resolver
	sink     interfaces.Sink
	reporter interfaces.EodSummarizer
	fetcher  *fetch.Fetcher

	spotBreaker   *breaker.Breaker
	optionBreaker *breaker.Breaker
	spotRange     fetch.Range

	lifecycle *Lifecycle
	orders    *orderExecutor
	session   *DaySession
	lastReset string

	now func() time.Time
}

var _ interfaces.Engine = (*Engine)(nil)

// Session returns the current day session, nil before the first reset.
func (e *Engine) Session() *DaySession { return e.session }

// Lifecycle exposes the position state machine.
func (e *Engine) Lifecycle() *Lifecycle { return e.lifecycle }

func (e *Engine) result(phase string, sleep time.Duration) types.TickResult {
	return types.TickResult{Phase: phase, Sleep: sleep}
}

// Tick runs the guards in order: closed market, daily reset, pivot, open
// position, trade cap, entry cutoff, opening range, bias, entry. Each guard
// short-circuits the rest. A panic inside the tick is returned as an error.
func (e *Engine) Tick(ctx context.Context) (res types.TickResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
			res = e.result(PhaseError, e.cfg.Loop.ErrorBackoff)
		}
	}()

	now := e.now()
	loop := e.cfg.Loop

	// (a) market closed
	if !e.cal.IsTradingDay(now) {
		e.sink.RecordMarketSnapshot(interfaces.MarketSnapshot{Status: "CLOSED"})
		e.sink.RecordStrategyStatus(dashboard.StatusMarketClosed)
		return e.result(PhaseClosed, loop.ClosedSleep), nil
	}
	if !e.cal.InSession(now) {
		e.sink.RecordMarketSnapshot(interfaces.MarketSnapshot{Status: "CLOSED"})
		if e.cal.BeforeOpen(now) {
			e.sink.RecordStrategyStatus(dashboard.StatusWaitingForMarket)
		} else {
			e.sink.RecordStrategyStatus(dashboard.StatusMarketClosed)
		}
		return e.result(PhaseClosed, loop.ClosedSleep), nil
	}

	// (b) new trading day
	justReset := e.ResetDay(ctx, now)
	s := e.session

	// (c) pivot
	if s.Pivot == nil {
		if !justReset {
			_ = e.computePivot(ctx, now)
		}
		if s.Pivot == nil {
			logger.Error(ctx, "Pivot not available, retrying", "retry_in", loop.PivotRetrySleep.String())
			e.sink.RecordEvent("Waiting for pivot calculation")
			return e.result(PhasePivotRetry, loop.PivotRetrySleep), nil
		}
	}
	pivot := s.Pivot.Value
	e.sink.RecordMarketSnapshot(interfaces.MarketSnapshot{Pivot: &pivot, Status: "OPEN"})

	// (d) position open
	if e.lifecycle.HasPosition() {
		if _, _, err := e.lifecycle.Monitor(ctx, s, now); err != nil {
			logger.ErrorWithErr(ctx, "Position exit failed, retrying next tick", err)
		}
		if e.lifecycle.HasPosition() {
			return e.result(PhaseMonitor, loop.MonitorSleep), nil
		}
		return e.result(PhaseIdle, loop.ScanSleep), nil
	}

	// (e) trade cap
	if e.lifecycle.risk.capReached(s.TradesExecuted) {
		e.sink.RecordStrategyStatus(dashboard.StatusTradeLimitReached)
		return e.result(PhaseIdle, loop.ScanSleep), nil
	}

	// (f) entry cutoff
	if e.cal.PastEntryCutoff(now) {
		e.sink.RecordStrategyStatus(dashboard.StatusEntryCutoffReached)
		return e.result(PhaseIdle, loop.ScanSleep), nil
	}

	// (g) opening range
	if !e.cal.BiasWindowClosed(now) {
		e.sink.RecordStrategyStatus(dashboard.StatusWaitingForBias)
		return e.result(PhaseIdle, loop.ScanSleep), nil
	}

	// (h) bias
	if !s.BiasLocked() {
		start, end := e.cal.BiasWindow(now)
		if b := s.DetermineBias(ctx, e.md, start, end); b != types.BiasUnset {
			e.onBiasLocked(ctx, s)
		}
	}
	switch s.Bias {
	case types.BiasUnset:
		e.sink.RecordStrategyStatus(dashboard.StatusWaitingForBias)
		return e.result(PhaseIdle, loop.ScanSleep), nil
	case types.BiasNeutral:
		e.sink.RecordStrategyStatus(dashboard.StatusNoTradeToday)
		return e.result(PhaseIdle, loop.ScanSleep), nil
	}

	// (i) entry
	return e.scanForEntry(ctx, s, now), nil
}

func (e *Engine) onBiasLocked(ctx context.Context, s *DaySession) {
	bias := s.Bias
	reason := fmt.Sprintf("opening range close %.2f vs pivot %.2f", s.BiasClose, s.PivotValue())
	logger.Decision(ctx, e.cfg.Underlying, string(bias), s.PivotValue(), reason, "opening_close", s.BiasClose)
	e.orders.logDecision(ctx, "BIAS", string(bias), s.PivotValue(), reason, map[string]float64{
		"opening_close": s.BiasClose,
	})
	e.sink.RecordMarketSnapshot(interfaces.MarketSnapshot{Bias: &bias})
	if bias == types.BiasNeutral {
		e.sink.RecordEvent("No clear bias - no trade today")
		return
	}
	e.sink.RecordEvent(fmt.Sprintf("Bias locked: %s", bias))
}

func (e *Engine) scanForEntry(ctx context.Context, s *DaySession, now time.Time) types.TickResult {
	scan := e.result(PhaseScan, e.cfg.Loop.ScanSleep)
	e.sink.RecordStrategyStatus(dashboard.StatusWaitingForPullback)

	spot, err := e.fetcher.Fetch(ctx, e.spotBreaker, "spot_price", e.md.SpotPrice, e.spotRange)
	if err != nil {
		logger.Warn(ctx, "Spot price unavailable", "error", err)
		return scan
	}
	e.sink.RecordMarketSnapshot(interfaces.MarketSnapshot{Spot: &spot})

	pivot := s.PivotValue()
	if !strategy.InPivotZone(spot, pivot, e.cfg.PivotBufferPoints) {
		logger.Debug(ctx, "Spot outside pivot zone",
			"spot", spot,
			"pivot", pivot,
			"distance", strategy.DistanceToPivot(spot, pivot),
		)
		return scan
	}

	e.sink.RecordEvent("Pullback to pivot zone detected")
	e.sink.RecordStrategyStatus(dashboard.StatusReadyToEnter)

	dir, _ := types.DirectionFor(s.Bias)
	strike := instruments.ITMStrike(spot, dir, e.cfg.StrikeStep)

	if !s.CatalogLoaded {
		if err := e.resolver.LoadCatalog(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Instrument catalog reload failed", err)
			e.sink.RecordEvent("Instrument catalog unavailable")
			return scan
		}
		s.CatalogLoaded = true
	}

	local := e.cal.Local(now)
	expiry, err := e.resolver.NearestExpiry(e.cfg.Underlying, local)
	if err != nil {
		logger.ErrorWithErr(ctx, "No valid expiry", err, "underlying", e.cfg.Underlying)
		e.sink.RecordEvent("No valid weekly expiry found")
		return scan
	}
	ref, err := e.resolver.Resolve(e.cfg.Underlying, expiry, strike, dir.OptionType())
	if err != nil {
		logger.ErrorWithErr(ctx, "Instrument resolution failed", err,
			"strike", strike,
			"option_type", dir.OptionType(),
			"expiry", expiry.Format("2006-01-02"),
		)
		e.sink.RecordEvent(fmt.Sprintf("Instrument not found: %d%s", strike, dir.OptionType()))
		return scan
	}

	if _, err := e.lifecycle.Enter(ctx, s, ref, dir); err != nil {
		if !isAbstention(err) && !errors.Is(err, context.Canceled) {
			logger.ErrorWithErr(ctx, "Entry failed", err, "symbol", ref.Symbol)
		} else {
			logger.Warn(ctx, "Entry aborted", "symbol", ref.Symbol, "error", err)
		}
		return scan
	}
	return e.result(PhaseEntered, e.cfg.Loop.MonitorSleep)
}

// ResetDay starts a new trading day at most once per calendar date and
// reports whether it did. It reports the previous session, clears the day's
// counters, bias and instrument cache, closes both breakers, reloads the
// catalog and computes the pivot. A pivot failure is left for the pivot
// guard to retry.
func (e *Engine) ResetDay(ctx context.Context, now time.Time) bool {
	date := e.cal.DateKey(now)
	if e.lastReset == date {
		return false
	}

	logger.Banner(ctx, "NEW TRADING DAY DETECTED", "date", date)

	if prev := e.session; prev != nil {
		e.report(ctx, prev.Date)
	}
	if e.lifecycle.HasPosition() {
		pos, _ := e.lifecycle.Position()
		logger.Risk(ctx, pos.Symbol, "POSITION_CARRIED_OVER", "entry_price", pos.EntryPrice)
	}

	e.session = newDaySession(date)
	e.resolver.Reset()
	e.spotBreaker.Reset()
	e.optionBreaker.Reset()
	metrics.ResetDay()

	unset := types.BiasUnset
	e.sink.RecordMarketSnapshot(interfaces.MarketSnapshot{Bias: &unset})
	e.sink.RecordEvent("New trading day " + date)

	if err := e.resolver.LoadCatalog(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Instrument catalog load failed", err)
	} else {
		e.session.CatalogLoaded = true
	}
	_ = e.computePivot(ctx, now)

	logger.Info(ctx, "Daily state reset complete",
		"date", date,
		"trades_executed", e.session.TradesExecuted,
		"instrument_cache", e.resolver.CacheSize(),
		"catalog_loaded", e.session.CatalogLoaded,
		"pivot_ready", e.session.Pivot != nil,
	)
	e.lastReset = date
	return true
}

// computePivot locks the session pivot from the last completed daily candle.
func (e *Engine) computePivot(ctx context.Context, now time.Time) error {
	local := e.cal.Local(now)
	candles, err := e.md.DailyCandles(ctx, local.AddDate(0, 0, -pivotLookbackDays), local)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch historical data for pivot", err)
		return err
	}
	lvl, err := strategy.ComputePivot(candles, local)
	if err != nil {
		logger.Warn(ctx, "Pivot unavailable", "error", err, "candles", len(candles))
		return err
	}

	e.session.Pivot = &lvl
	metrics.SetPivot(lvl.Value)
	lo, hi := strategy.ZoneBounds(lvl.Value, e.cfg.PivotBufferPoints)
	logger.Banner(ctx, "DAILY PIVOT CALCULATED",
		"source_date", lvl.Source.Ts.Format("2006-01-02"),
		"high", lvl.Source.High,
		"low", lvl.Source.Low,
		"close", lvl.Source.Close,
		"pivot", lvl.Value,
		"zone_low", lo,
		"zone_high", hi,
	)
	e.orders.logDecision(ctx, "PIVOT", "LOCKED", lvl.Value, "previous session H/L/C", map[string]float64{
		"high":  lvl.Source.High,
		"low":   lvl.Source.Low,
		"close": lvl.Source.Close,
	})
	pivot := lvl.Value
	e.sink.RecordMarketSnapshot(interfaces.MarketSnapshot{Pivot: &pivot})
	return nil
}

func (e *Engine) report(ctx context.Context, date string) {
	if e.reporter == nil || date == "" {
		return
	}
	day, err := time.ParseInLocation("2006-01-02", date, e.cal.Location())
	if err != nil {
		return
	}
	rep, err := e.reporter.SummarizeDay(ctx, day)
	if err != nil {
		logger.ErrorWithErr(ctx, "Daily report failed", err, "date", date)
		return
	}
	if rep.Trades == 0 {
		logger.Info(ctx, "No trades to report", "date", date)
		return
	}
	logger.Banner(ctx, "DAILY PERFORMANCE REPORT",
		"date", rep.Date,
		"trades", rep.Trades,
		"wins", rep.Wins,
		"losses", rep.Losses,
		"win_rate", rep.WinRate,
		"total_pnl", rep.TotalPnL,
		"avg_win", rep.AvgWin,
		"avg_loss", rep.AvgLoss,
		"max_drawdown", rep.MaxDrawdown,
		"csv", rep.CSVPath,
	)
}

// Heartbeat logs the periodic status line.
func (e *Engine) Heartbeat(ctx context.Context) {
	now := e.cal.Local(e.now())
	position, bias, pivot := "NONE", "NOT SET", "Not Set"
	trades := 0
	if e.lifecycle.HasPosition() {
		position = "OPEN"
	}
	if s := e.session; s != nil {
		trades = s.TradesExecuted
		if s.BiasLocked() {
			bias = string(s.Bias)
		}
		if s.Pivot != nil {
			pivot = fmt.Sprintf("%.2f", s.Pivot.Value)
		}
	}
	logger.Banner(ctx, "SYSTEM HEARTBEAT",
		"date", now.Format("2006-01-02"),
		"time", now.Format("15:04:05"),
		"trades_today", fmt.Sprintf("%d/%d", trades, e.cfg.MaxDailyTrades),
		"position", position,
		"bias", bias,
		"pivot", pivot,
		"spot_breaker", e.spotBreaker.Status(),
		"option_breaker", e.optionBreaker.Status(),
	)
}

// Shutdown makes one best-effort quote read for an open position, logs the
// session summary and runs today's report. It never closes the position.
func (e *Engine) Shutdown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	logger.Warn(ctx, "Shutting down trading loop")
	e.sink.RecordEvent("System shutdown initiated")

	if pos, ok := e.lifecycle.Position(); ok {
		price, err := e.md.OptionPrice(ctx, refOf(&pos))
		if err != nil {
			logger.ErrorWithErr(ctx, "Open position at shutdown, quote unavailable", err, "symbol", pos.Symbol)
		} else {
			logger.Risk(ctx, pos.Symbol, "OPEN_POSITION_AT_SHUTDOWN",
				"entry_price", pos.EntryPrice,
				"last_price", price,
				"unrealized_pnl", pnlOf(pos.EntryPrice, price, pos.Quantity),
			)
		}
	}

	trades := 0
	date := e.cal.DateKey(e.now())
	if s := e.session; s != nil {
		trades = s.TradesExecuted
		date = s.Date
	}
	logger.Banner(ctx, "SESSION SUMMARY",
		"date", date,
		"trades_executed", trades,
		"position_open", e.lifecycle.HasPosition(),
	)
	e.report(ctx, date)
}
