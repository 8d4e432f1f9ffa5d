package engine

import (
	"context"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/tradelog"
	"pivot-itm-bot/internal/types"
)

// DecisionLog records strategy decisions next to the trade journal.
type DecisionLog interface {
	AppendDecision(e tradelog.DecisionEntry) error
}

// orderExecutor handles order submission and journaling.
type orderExecutor struct {
	exec      interfaces.Executor
	journal   interfaces.Journal
	decisions DecisionLog
}

func newOrderExecutor(exec interfaces.Executor, journal interfaces.Journal, decisions DecisionLog) *orderExecutor {
	return &orderExecutor{
		exec:      exec,
		journal:   journal,
		decisions: decisions,
	}
}

// placeBuyOrder submits the entry for pos.
//
// Parameters:
//   - ctx: Context for logging and tracing
//   - pos: Position being opened; EntryPrice and Quantity are the order price and size
//
// Returns:
//   - resp: Acknowledgement from the executor
//   - err: Error if the executor rejected the order
func (oe *orderExecutor) placeBuyOrder(ctx context.Context, pos types.Position) (types.OrderResp, error) {
	req := types.OrderReq{
		Symbol:   pos.Symbol,
		Exchange: pos.Exchange,
		Side:     "BUY",
		Qty:      pos.Quantity,
		Price:    pos.EntryPrice,
		Tag:      "PIVOT_ITM",
	}

	resp, err := oe.exec.SubmitBuy(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place BUY order", err,
			"symbol", pos.Symbol,
			"qty", pos.Quantity,
			"price", pos.EntryPrice,
		)
		return types.OrderResp{}, err
	}
	return resp, nil
}

// placeSellOrder submits the exit of pos at price.
func (oe *orderExecutor) placeSellOrder(ctx context.Context, pos types.Position, price float64, reason types.ExitReason) (types.OrderResp, error) {
	req := types.OrderReq{
		Symbol:   pos.Symbol,
		Exchange: pos.Exchange,
		Side:     "SELL",
		Qty:      pos.Quantity,
		Price:    price,
		Tag:      string(reason),
	}

	resp, err := oe.exec.SubmitSell(ctx, req, reason)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place SELL order", err,
			"symbol", pos.Symbol,
			"qty", pos.Quantity,
			"price", price,
			"reason", string(reason),
		)
		return types.OrderResp{}, err
	}
	return resp, nil
}

// recordTrade appends the closed trade to the journal. The order has already
// gone through, so a journal failure is logged and not returned.
func (oe *orderExecutor) recordTrade(ctx context.Context, rec types.TradeRecord) {
	if oe.journal == nil {
		return
	}
	if err := oe.journal.AppendTradeRecord(ctx, rec); err != nil {
		logger.ErrorWithErr(ctx, "Failed to append trade to journal", err,
			"symbol", rec.Symbol,
			"pnl", rec.PnL,
		)
	}
}

// logDecision appends a strategy decision to the decision log.
func (oe *orderExecutor) logDecision(ctx context.Context, kind, decision string, reference float64, reason string, values map[string]float64) {
	if oe.decisions == nil {
		return
	}
	if err := oe.decisions.AppendDecision(tradelog.DecisionEntry{
		Kind:      kind,
		Decision:  decision,
		Reference: reference,
		Reason:    reason,
		Values:    values,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Failed to append decision", err, "kind", kind)
	}
}
