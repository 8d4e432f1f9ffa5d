package engine

import (
	"context"
	"time"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/strategy"
	"pivot-itm-bot/internal/types"
)

// DaySession is all per-day mutable state. It is owned by the Engine and
// replaced wholesale by the daily reset.
type DaySession struct {
	Date           string
	Pivot          *types.PivotLevel
	Bias           types.Bias
	BiasClose      float64
	TradesExecuted int
	CatalogLoaded  bool
}

func newDaySession(date string) *DaySession {
	return &DaySession{Date: date, Bias: types.BiasUnset}
}

// BiasLocked reports whether the day's bias has been decided, NEUTRAL included.
func (s *DaySession) BiasLocked() bool {
	return s.Bias != "" && s.Bias != types.BiasUnset
}

// PivotValue returns the locked pivot or 0 when it is not computed yet.
func (s *DaySession) PivotValue() float64 {
	if s.Pivot == nil {
		return 0
	}
	return s.Pivot.Value
}

// DetermineBias locks the day's bias from the opening-range candle close.
// Once locked it returns the same value without touching md. A missing
// pivot, an upstream error or a candle that is not published yet all return
// BiasUnset and leave the session unlocked so the next tick retries.
func (s *DaySession) DetermineBias(ctx context.Context, md interfaces.MarketData, start, end time.Time) types.Bias {
	if s.BiasLocked() {
		return s.Bias
	}
	if s.Pivot == nil {
		return types.BiasUnset
	}

	c, err := md.OpeningRangeCandle(ctx, start, end)
	if err != nil {
		logger.Warn(ctx, "Opening range candle unavailable", "error", err)
		return types.BiasUnset
	}
	if c == nil {
		return types.BiasUnset
	}

	s.Bias = strategy.ClassifyBias(c.Close, s.Pivot.Value)
	s.BiasClose = c.Close
	return s.Bias
}
