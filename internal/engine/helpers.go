package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// notional is price × qty.
func notional(price float64, qty int) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}

// pnlOf is (exit - entry) × qty, rounded to 2 decimals.
func pnlOf(entry, exit float64, qty int) float64 {
	d := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry))
	return d.Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}

func pnlPercent(entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	return decimal.NewFromFloat(exit).Sub(e).Div(e).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
