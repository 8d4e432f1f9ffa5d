package interfaces

import (
	"context"
	"time"

	"pivot-itm-bot/internal/types"
)

// MarketData is the read side of the broker feed.
type MarketData interface {
	// SpotPrice returns the last traded price of the underlying index.
	SpotPrice(ctx context.Context) (float64, error)

	// OptionPrice returns the last traded price of an option contract.
	OptionPrice(ctx context.Context, ref types.InstrumentRef) (float64, error)

	// DailyCandles returns daily bars of the underlying between from and to.
	DailyCandles(ctx context.Context, from, to time.Time) ([]types.Candle, error)

	// OpeningRangeCandle returns the bar covering [start, end). A nil candle
	// with a nil error means the bar is not published yet.
	OpeningRangeCandle(ctx context.Context, start, end time.Time) (*types.Candle, error)
}

// Catalog lists the static instrument master, refreshed once per day.
type Catalog interface {
	ListInstruments(ctx context.Context, segment string) ([]types.Instrument, error)
}

// Executor submits orders. The paper implementation only simulates fills.
type Executor interface {
	SubmitBuy(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	SubmitSell(ctx context.Context, req types.OrderReq, reason types.ExitReason) (types.OrderResp, error)
}
