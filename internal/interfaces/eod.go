package interfaces

import (
	"context"
	"time"

	"pivot-itm-bot/internal/types"
)

// EodSummarizer builds the daily performance report from the journal.
type EodSummarizer interface {
	// SummarizeDay reports on the trading date of t. A day without trades
	// returns a zero-trade report and no CSV.
	SummarizeDay(ctx context.Context, t time.Time) (types.DailyReport, error)
}
