// Package fetch wraps a single numeric upstream read with bounded retries,
// a plausibility range check and circuit breaker bookkeeping.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/metrics"
)

var (
	// ErrUnavailable means no valid value could be obtained for this tick.
	ErrUnavailable = errors.New("fetch: value unavailable")
	// ErrOutOfRange marks a numerically successful read outside its plausibility band.
	ErrOutOfRange = errors.New("fetch: value out of range")
)

// Range is an inclusive plausibility band.
type Range struct {
	Min, Max float64
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Guard is the circuit breaker surface the fetcher needs.
type Guard interface {
	IsOpen() bool
	RecordFailure()
	RecordSuccess()
}

type Fetcher struct {
	Retries int
	Delay   time.Duration
	// Sleep waits between attempts. Nil uses a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(retries int, delay time.Duration) *Fetcher {
	return &Fetcher{Retries: retries, Delay: delay}
}

// Fetch runs op up to Retries times. It fails fast when g is open, records a
// single breaker failure after the last attempt, and records success on the
// first in-range value.
func (f *Fetcher) Fetch(ctx context.Context, g Guard, name string, op func(ctx context.Context) (float64, error), r Range) (float64, error) {
	if g.IsOpen() {
		metrics.IncFetchAttempt(name, "breaker_open")
		logger.Debug(ctx, "Fetch skipped, circuit breaker open", "name", name)
		return 0, fmt.Errorf("%s: circuit breaker open: %w", name, ErrUnavailable)
	}

	retries := f.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		v, err := op(ctx)
		switch {
		case err != nil:
			lastErr = err
			metrics.IncFetchAttempt(name, "error")
		case !r.Contains(v):
			lastErr = fmt.Errorf("%.2f not in [%.2f, %.2f]: %w", v, r.Min, r.Max, ErrOutOfRange)
			metrics.IncFetchAttempt(name, "out_of_range")
		default:
			metrics.IncFetchAttempt(name, "ok")
			g.RecordSuccess()
			return v, nil
		}

		logger.Warn(ctx, "Fetch attempt failed",
			"name", name,
			"attempt", attempt,
			"max_attempts", retries,
			"error", lastErr,
		)

		if attempt < retries {
			if err := f.sleep(ctx, f.Delay); err != nil {
				// Cancelled mid-retry; not counted against the breaker.
				return 0, fmt.Errorf("%s: %w: %v", name, ErrUnavailable, err)
			}
		}
	}

	g.RecordFailure()
	logger.Error(ctx, "Fetch exhausted retries", "name", name, "attempts", retries, "error", lastErr)
	return 0, fmt.Errorf("%s: %w: %v", name, ErrUnavailable, lastErr)
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep != nil {
		return f.Sleep(ctx, d)
	}
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
