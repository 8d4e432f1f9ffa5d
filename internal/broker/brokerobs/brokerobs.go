package brokerobs

import (
	"context"
	"time"

	"pivot-itm-bot/internal/broker/zerodha"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/trace"
	"pivot-itm-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker zerodha.Broker
}

// Compile-time interface check
var _ zerodha.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker zerodha.Broker) zerodha.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) SpotPrice(ctx context.Context) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SpotPrice")
	defer span.End()

	price, err := ob.broker.SpotPrice(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch spot price", err)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Spot price fetched", "price", price)
	return price, nil
}

func (ob *observableBroker) OptionPrice(ctx context.Context, ref types.InstrumentRef) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OptionPrice")
	defer span.End()

	price, err := ob.broker.OptionPrice(ctx, ref)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch option price", err, "symbol", ref.Symbol)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Option price fetched", "symbol", ref.Symbol, "price", price)
	return price, nil
}

func (ob *observableBroker) DailyCandles(ctx context.Context, from, to time.Time) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.DailyCandles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching daily candles", "from", from.Format("2006-01-02"), "to", to.Format("2006-01-02"))

	candles, err := ob.broker.DailyCandles(ctx, from, to)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch daily candles", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Daily candles fetched", "count", len(candles))
	return candles, nil
}

func (ob *observableBroker) OpeningRangeCandle(ctx context.Context, start, end time.Time) (*types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpeningRangeCandle")
	defer span.End()

	c, err := ob.broker.OpeningRangeCandle(ctx, start, end)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch opening range candle", err,
			"start", start.Format("15:04"),
			"end", end.Format("15:04"),
		)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Opening range candle fetched", "available", c != nil)
	return c, nil
}

func (ob *observableBroker) ListInstruments(ctx context.Context, segment string) ([]types.Instrument, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Instruments")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Fetching instrument catalog", "segment", segment)

	rows, err := ob.broker.ListInstruments(ctx, segment)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch instrument catalog", err, "segment", segment)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Instrument catalog fetched", "segment", segment, "count", len(rows))
	return rows, nil
}
