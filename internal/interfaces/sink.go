package interfaces

import (
	"context"

	"pivot-itm-bot/internal/types"
)

// MarketSnapshot carries the optional market fields; nil fields are left unchanged.
type MarketSnapshot struct {
	Spot   *float64
	Pivot  *float64
	Bias   *types.Bias
	Status string
}

// Sink is the push-only observability surface. Implementations must not
// block the caller and must be safe for concurrent readers.
type Sink interface {
	RecordMarketSnapshot(s MarketSnapshot)
	RecordStrategyStatus(status string)
	RecordTradeEntered(p types.Position)
	RecordTradePriceUpdate(price float64)
	RecordTradeExited(rec types.TradeRecord)
	RecordEvent(message string)
}

// Journal durably appends closed trades.
type Journal interface {
	AppendTradeRecord(ctx context.Context, rec types.TradeRecord) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordMarketSnapshot(MarketSnapshot) {}
func (NopSink) RecordStrategyStatus(string)         {}
func (NopSink) RecordTradeEntered(types.Position)   {}
func (NopSink) RecordTradePriceUpdate(float64)      {}
func (NopSink) RecordTradeExited(types.TradeRecord) {}
func (NopSink) RecordEvent(string)                  {}
