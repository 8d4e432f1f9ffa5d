package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pivot-itm-bot/internal/dashboard"
	"pivot-itm-bot/internal/fetch"
	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/metrics"
	"pivot-itm-bot/internal/types"
)

// LifecycleConfig is the sizing and price-guard part of the configuration.
type LifecycleConfig struct {
	LotSize          int
	Lots             int
	MaxDailyTrades   int
	StopLossPct      float64
	ProfitTargetPct  float64
	ConfirmDelay     time.Duration
	MaxDivergencePct float64
	OptionRange      fetch.Range
}

// Lifecycle is the single-position state machine: IDLE -> ENTERING -> OPEN
// -> EXITING -> IDLE. It is not safe for concurrent use.
type Lifecycle struct {
	cfg     LifecycleConfig
	md      interfaces.MarketData
	fetcher *fetch.Fetcher
	guard   fetch.Guard
	sink    interfaces.Sink

	positions *positionManager
	risk      *riskManager
	stops     *stopManager
	orders    *orderExecutor

	// eodDue reports whether the forced exit time has been reached.
	eodDue func(time.Time) bool
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State { return l.positions.state }

// Position returns a copy of the open position.
func (l *Lifecycle) Position() (types.Position, bool) {
	p := l.positions.get()
	if p == nil {
		return types.Position{}, false
	}
	return *p, true
}

func (l *Lifecycle) HasPosition() bool { return l.positions.has() }

func (l *Lifecycle) optionPrice(ctx context.Context, ref types.InstrumentRef) (float64, error) {
	return l.fetcher.Fetch(ctx, l.guard, "option_price", func(ctx context.Context) (float64, error) {
		return l.md.OptionPrice(ctx, ref)
	}, l.cfg.OptionRange)
}

// Enter opens a position in ref. The trade cap and the single-position rule
// are checked first. Two option price reads ConfirmDelay apart must both be
// valid and within MaxDivergencePct of each other; the second read is the
// entry price. The trade counter is incremented only once the executor has
// accepted the buy.
func (l *Lifecycle) Enter(ctx context.Context, s *DaySession, ref types.InstrumentRef, dir types.Direction) (types.Position, error) {
	if err := l.risk.canEnter(ctx, ref.Symbol, s.TradesExecuted, l.positions.has()); err != nil {
		return types.Position{}, err
	}

	l.positions.set(StateEntering)
	pos, err := l.enter(ctx, s, ref, dir)
	if err != nil {
		l.positions.set(StateIdle)
		return types.Position{}, err
	}
	return pos, nil
}

func (l *Lifecycle) enter(ctx context.Context, s *DaySession, ref types.InstrumentRef, dir types.Direction) (types.Position, error) {
	first, err := l.optionPrice(ctx, ref)
	if err != nil {
		l.sink.RecordEvent("Entry aborted - option price unavailable")
		return types.Position{}, fmt.Errorf("first read: %w", err)
	}
	if err := l.sleep(ctx, l.cfg.ConfirmDelay); err != nil {
		return types.Position{}, err
	}
	confirm, err := l.optionPrice(ctx, ref)
	if err != nil {
		l.sink.RecordEvent("Entry aborted - option price unavailable")
		return types.Position{}, fmt.Errorf("confirm read: %w", err)
	}
	if err := l.risk.checkEntryPrices(ctx, ref.Symbol, first, confirm); err != nil {
		l.sink.RecordEvent("Entry aborted - price unstable")
		return types.Position{}, err
	}

	price := confirm
	qty := l.cfg.LotSize * l.cfg.Lots
	stop, target := l.stops.levels(price)
	pos := types.Position{
		Symbol:         ref.Symbol,
		Segment:        ref.Segment,
		Exchange:       ref.Exchange,
		Direction:      dir,
		EntryPrice:     price,
		Quantity:       qty,
		EntryTime:      l.now(),
		Invested:       notional(price, qty),
		StopLoss:       stop,
		ProfitTarget:   target,
		PivotReference: s.PivotValue(),
		LastPrice:      price,
	}

	resp, err := l.orders.placeBuyOrder(ctx, pos)
	if err != nil {
		l.sink.RecordEvent("Entry rejected by executor: " + truncate(err.Error(), 80))
		return types.Position{}, fmt.Errorf("submit buy %s: %w", ref.Symbol, err)
	}
	pos.EntryOrderID = resp.OrderID

	s.TradesExecuted++
	metrics.SetDailyTrades(s.TradesExecuted)
	l.positions.open(pos)

	logger.Banner(ctx, "TRADE ENTRY EXECUTED",
		"symbol", pos.Symbol,
		"direction", string(pos.Direction),
		"entry_price", pos.EntryPrice,
		"quantity", pos.Quantity,
		"invested", pos.Invested,
		"profit_target", pos.ProfitTarget,
		"stop_loss", pos.StopLoss,
		"pivot", pos.PivotReference,
		"trade_count", s.TradesExecuted,
		"max_daily_trades", l.cfg.MaxDailyTrades,
		"order_id", pos.EntryOrderID,
	)
	l.orders.logDecision(ctx, "ENTRY", "BUY_"+string(dir), pos.PivotReference, "pullback to pivot zone", map[string]float64{
		"entry_price":   pos.EntryPrice,
		"first_read":    first,
		"stop_loss":     pos.StopLoss,
		"profit_target": pos.ProfitTarget,
	})
	l.sink.RecordTradeEntered(pos)
	return pos, nil
}

// Monitor evaluates the open position once: the forced end-of-day exit
// first, then the stop-loss, then the profit-target. An unavailable quote
// skips the tick except for the forced exit, which falls back to the last
// known price. It returns the exit reason when the position was closed.
func (l *Lifecycle) Monitor(ctx context.Context, s *DaySession, now time.Time) (types.ExitReason, bool, error) {
	pos := l.positions.get()
	if pos == nil {
		return "", false, nil
	}
	ref := refOf(pos)

	if l.eodDue(now) {
		logger.Warn(ctx, "End-of-day exit triggered", "symbol", pos.Symbol)
		l.sink.RecordEvent("EOD exit triggered")

		price, err := l.optionPrice(ctx, ref)
		if err != nil {
			price = pos.LastPrice
			if price <= 0 {
				price = pos.EntryPrice
			}
			logger.Warn(ctx, "No fresh quote for EOD exit, using last known price", "symbol", pos.Symbol, "price", price)
		}
		if _, err := l.Exit(ctx, s, price, types.ExitEOD); err != nil {
			return "", false, err
		}
		return types.ExitEOD, true, nil
	}

	price, err := l.optionPrice(ctx, ref)
	if err != nil {
		logger.Debug(ctx, "Option price unavailable, skipping monitor tick", "symbol", pos.Symbol, "error", err)
		return "", false, nil
	}
	l.positions.updatePrice(price)
	l.sink.RecordTradePriceUpdate(price)

	var reason types.ExitReason
	switch {
	case l.stops.checkStopLoss(ctx, price, pos):
		reason = types.ExitStopLoss
	case l.stops.checkProfitTarget(ctx, price, pos):
		reason = types.ExitProfitTarget
	default:
		return "", false, nil
	}
	if _, err := l.Exit(ctx, s, price, reason); err != nil {
		return "", false, err
	}
	return reason, true, nil
}

// Exit closes the whole position at price. If the executor rejects the sell
// the position stays OPEN.
func (l *Lifecycle) Exit(ctx context.Context, s *DaySession, price float64, reason types.ExitReason) (types.TradeRecord, error) {
	pos := l.positions.get()
	if pos == nil {
		return types.TradeRecord{}, ErrNoPosition
	}

	l.positions.set(StateExiting)
	resp, err := l.orders.placeSellOrder(ctx, *pos, price, reason)
	if err != nil {
		l.positions.set(StateOpen)
		l.sink.RecordEvent("Exit rejected by executor: " + truncate(err.Error(), 80))
		return types.TradeRecord{}, fmt.Errorf("submit sell %s: %w", pos.Symbol, err)
	}

	exitTime := l.now()
	rec := types.TradeRecord{
		Date:         s.Date,
		Symbol:       pos.Symbol,
		Direction:    pos.Direction,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    price,
		Quantity:     pos.Quantity,
		Invested:     pos.Invested,
		PnL:          pnlOf(pos.EntryPrice, price, pos.Quantity),
		PnLPercent:   pnlPercent(pos.EntryPrice, price),
		ExitReason:   reason,
		EntryTime:    pos.EntryTime,
		ExitTime:     exitTime,
		StopLoss:     pos.StopLoss,
		ProfitTarget: pos.ProfitTarget,
		Pivot:        pos.PivotReference,
		EntryOrderID: pos.EntryOrderID,
		ExitOrderID:  resp.OrderID,
	}

	logger.Banner(ctx, "TRADE EXIT",
		"symbol", rec.Symbol,
		"direction", string(rec.Direction),
		"entry_price", rec.EntryPrice,
		"exit_price", rec.ExitPrice,
		"pnl", rec.PnL,
		"pnl_percent", rec.PnLPercent,
		"exit_reason", string(reason),
		"duration", exitTime.Sub(pos.EntryTime).Round(time.Second).String(),
	)

	l.orders.recordTrade(ctx, rec)
	l.sink.RecordTradeExited(rec)
	metrics.ObserveExit(string(reason), rec.PnL)
	l.positions.close()

	if l.risk.capReached(s.TradesExecuted) {
		l.sink.RecordStrategyStatus(dashboard.StatusTradeLimitReached)
	} else {
		l.sink.RecordStrategyStatus(dashboard.StatusWaitingForPullback)
	}
	return rec, nil
}

func refOf(p *types.Position) types.InstrumentRef {
	return types.InstrumentRef{Symbol: p.Symbol, Segment: p.Segment, Exchange: p.Exchange}
}

// isAbstention reports whether err is an expected per-tick abstention rather
// than an unexpected failure.
func isAbstention(err error) bool {
	return errors.Is(err, fetch.ErrUnavailable) ||
		errors.Is(err, ErrPriceUnstable) ||
		errors.Is(err, ErrTradeCapReached) ||
		errors.Is(err, ErrPositionOpen)
}
