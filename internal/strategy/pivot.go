// Package strategy holds the pure decision rules of the pivot pullback
// strategy: the daily pivot, the opening-range bias and the entry zone.
package strategy

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pivot-itm-bot/internal/types"
)

// ErrNoCompletedDay means the daily candles contain no session before today.
var ErrNoCompletedDay = errors.New("strategy: no completed trading day in candles")

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// PreviousDay returns the most recent candle dated strictly before today's
// calendar date. Dates compare in today's location.
func PreviousDay(candles []types.Candle, today time.Time) (types.Candle, error) {
	start := startOfDay(today)
	completed := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Ts.Before(start) {
			completed = append(completed, c)
		}
	}
	if len(completed) == 0 {
		return types.Candle{}, ErrNoCompletedDay
	}
	sort.SliceStable(completed, func(i, j int) bool { return completed[i].Ts.Before(completed[j].Ts) })
	return completed[len(completed)-1], nil
}

// ComputePivot returns round((H+L+C)/3, 2) of the previous completed session.
func ComputePivot(candles []types.Candle, today time.Time) (types.PivotLevel, error) {
	prev, err := PreviousDay(candles, today)
	if err != nil {
		return types.PivotLevel{}, err
	}
	sum := decimal.NewFromFloat(prev.High).
		Add(decimal.NewFromFloat(prev.Low)).
		Add(decimal.NewFromFloat(prev.Close))
	value := sum.Div(decimal.NewFromInt(3)).Round(2).InexactFloat64()
	return types.PivotLevel{Value: value, ForDate: startOfDay(today), Source: prev}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
