package strategy

import "pivot-itm-bot/internal/types"

// ClassifyBias compares the opening-range close to the pivot. Equality is
// NEUTRAL, which keeps the day out of trading.
func ClassifyBias(close, pivot float64) types.Bias {
	switch {
	case close > pivot:
		return types.BiasBullish
	case close < pivot:
		return types.BiasBearish
	default:
		return types.BiasNeutral
	}
}
