// Package paper simulates order fills at the requested price.
package paper

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/metrics"
	"pivot-itm-bot/internal/types"
)

type Executor struct{}

var _ interfaces.Executor = (*Executor)(nil)

func New() *Executor { return &Executor{} }

func (e *Executor) SubmitBuy(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	return e.fill(ctx, req, "BUY", "")
}

func (e *Executor) SubmitSell(ctx context.Context, req types.OrderReq, reason types.ExitReason) (types.OrderResp, error) {
	return e.fill(ctx, req, "SELL", reason)
}

func (e *Executor) fill(ctx context.Context, req types.OrderReq, side string, reason types.ExitReason) (types.OrderResp, error) {
	if req.Qty <= 0 || req.Price <= 0 {
		return types.OrderResp{}, fmt.Errorf("paper %s %s: invalid qty %d or price %.2f", side, req.Symbol, req.Qty, req.Price)
	}
	id := "PAPER-" + uuid.NewString()
	metrics.IncOrder("PAPER", side)

	fields := []any{"mode", "PAPER", "value", req.Price * float64(req.Qty)}
	if reason != "" {
		fields = append(fields, "reason", string(reason))
	}
	logger.Trade(ctx, req.Symbol, side, req.Qty, req.Price, id, fields...)

	return types.OrderResp{OrderID: id, Status: "SIMULATED", Message: "paper fill"}, nil
}
