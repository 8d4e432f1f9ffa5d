package engine

import (
	"context"

	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/strategy"
	"pivot-itm-bot/internal/types"
)

// stopManager computes and checks the fixed percentage stop-loss and
// profit-target levels.
type stopManager struct {
	stopPct   float64
	targetPct float64
}

func newStopManager(stopPct, targetPct float64) *stopManager {
	return &stopManager{stopPct: stopPct, targetPct: targetPct}
}

// levels returns the stop-loss and profit-target for an entry price,
// rounded to 2 decimals.
func (sm *stopManager) levels(entry float64) (stop, target float64) {
	return strategy.Round2(entry * (1 - sm.stopPct)), strategy.Round2(entry * (1 + sm.targetPct))
}

// checkStopLoss verifies if current price has hit the stop-loss.
//
// Parameters:
//   - ctx: Context for logging
//   - price: Current option price
//   - pos: Open position
//
// Returns:
//   - triggered: true if price <= stop-loss
func (sm *stopManager) checkStopLoss(ctx context.Context, price float64, pos *types.Position) bool {
	if pos == nil || price > pos.StopLoss {
		return false
	}
	logger.Warn(ctx, "Stop loss triggered",
		"symbol", pos.Symbol,
		"event", "STOP_LOSS_TRIGGERED",
		"current_price", price,
		"stop_price", pos.StopLoss,
		"entry_price", pos.EntryPrice,
		"unrealized_pnl", pnlOf(pos.EntryPrice, price, pos.Quantity),
	)
	return true
}

// checkProfitTarget reports whether price >= profit-target.
func (sm *stopManager) checkProfitTarget(ctx context.Context, price float64, pos *types.Position) bool {
	if pos == nil || price < pos.ProfitTarget {
		return false
	}
	logger.Info(ctx, "Profit target hit",
		"symbol", pos.Symbol,
		"event", "PROFIT_TARGET_HIT",
		"current_price", price,
		"target_price", pos.ProfitTarget,
		"entry_price", pos.EntryPrice,
		"unrealized_pnl", pnlOf(pos.EntryPrice, price, pos.Quantity),
	)
	return true
}
