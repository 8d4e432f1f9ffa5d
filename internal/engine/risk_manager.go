package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"pivot-itm-bot/internal/logger"
)

var (
	ErrTradeCapReached = errors.New("engine: daily trade cap reached")
	ErrPositionOpen    = errors.New("engine: position already open")
	ErrPriceUnstable   = errors.New("engine: option price unstable")
	ErrNoPosition      = errors.New("engine: no open position")
)

// riskManager enforces the daily trade cap and the entry price stability guard.
type riskManager struct {
	maxDailyTrades   int
	maxDivergencePct float64
}

func newRiskManager(maxDailyTrades int, maxDivergencePct float64) *riskManager {
	return &riskManager{
		maxDailyTrades:   maxDailyTrades,
		maxDivergencePct: maxDivergencePct,
	}
}

// capReached reports whether no further entries are allowed today.
func (rm *riskManager) capReached(executed int) bool {
	return executed >= rm.maxDailyTrades
}

// canEnter gates the IDLE -> ENTERING transition.
func (rm *riskManager) canEnter(ctx context.Context, symbol string, executed int, hasPosition bool) error {
	if rm.capReached(executed) {
		logger.Risk(ctx, symbol, "TRADE_LIMIT_REACHED",
			"executed", executed,
			"max_daily_trades", rm.maxDailyTrades,
		)
		return fmt.Errorf("%d/%d trades: %w", executed, rm.maxDailyTrades, ErrTradeCapReached)
	}
	if hasPosition {
		return ErrPositionOpen
	}
	return nil
}

// checkEntryPrices rejects a pair of confirmation reads that are not both
// positive or that diverge by more than the configured fraction of the first.
func (rm *riskManager) checkEntryPrices(ctx context.Context, symbol string, first, confirm float64) error {
	if first <= 0 || confirm <= 0 {
		return fmt.Errorf("reads %.2f, %.2f: %w", first, confirm, ErrPriceUnstable)
	}
	divergence := math.Abs(confirm-first) / first
	if divergence > rm.maxDivergencePct {
		logger.Risk(ctx, symbol, "ENTRY_PRICE_UNSTABLE",
			"first", first,
			"confirm", confirm,
			"divergence_pct", divergence*100,
			"max_divergence_pct", rm.maxDivergencePct*100,
		)
		return fmt.Errorf("reads %.2f -> %.2f diverge %.2f%%: %w", first, confirm, divergence*100, ErrPriceUnstable)
	}
	return nil
}
