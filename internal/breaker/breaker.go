// Package breaker implements an advisory circuit breaker. It never calls the
// guarded operation: callers ask IsOpen first and report the outcome.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/metrics"
)

type Option func(*Breaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time // zero while closed
}

// State is a point-in-time copy of the breaker.
type State struct {
	Name      string
	Failures  int
	Threshold int
	Open      bool
	OpenedAt  time.Time
}

func New(name string, threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	b := &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	metrics.SetBreakerOpen(name, false)
	return b
}

func (b *Breaker) Name() string { return b.name }

// RecordFailure counts a failure and opens the breaker once the threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	b.failures++
	opened := false
	if b.failures >= b.threshold && b.openedAt.IsZero() {
		b.openedAt = b.now()
		opened = true
	}
	failures := b.failures
	b.mu.Unlock()

	if opened {
		metrics.SetBreakerOpen(b.name, true)
		logger.Risk(context.Background(), b.name, "CIRCUIT_BREAKER_OPEN",
			"failures", failures,
			"cooldown", b.cooldown.String(),
		)
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	wasOpen := !b.openedAt.IsZero()
	b.failures = 0
	b.openedAt = time.Time{}
	b.mu.Unlock()

	if wasOpen {
		metrics.SetBreakerOpen(b.name, false)
	}
}

// IsOpen reports whether calls should be skipped. Once the cooldown has
// strictly elapsed the breaker resets itself and reports closed.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	if b.openedAt.IsZero() {
		b.mu.Unlock()
		return false
	}
	if b.now().Sub(b.openedAt) > b.cooldown {
		b.failures = 0
		b.openedAt = time.Time{}
		b.mu.Unlock()
		metrics.SetBreakerOpen(b.name, false)
		logger.Info(context.Background(), "Circuit breaker reset after cooldown", "breaker", b.name)
		return false
	}
	b.mu.Unlock()
	return true
}

// Reset force-closes the breaker. Used by the daily reset.
func (b *Breaker) Reset() {
	b.RecordSuccess()
}

// Status renders the breaker for heartbeat and dashboard output.
func (b *Breaker) Status() string {
	s := b.Snapshot()
	if s.Open {
		return fmt.Sprintf("OPEN (failures=%d, since %s)", s.Failures, s.OpenedAt.Format("15:04:05"))
	}
	return fmt.Sprintf("CLOSED (failures=%d/%d)", s.Failures, s.Threshold)
}

// Snapshot does not apply the cooldown reset; it only reads.
func (b *Breaker) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		Name:      b.name,
		Failures:  b.failures,
		Threshold: b.threshold,
		Open:      !b.openedAt.IsZero(),
		OpenedAt:  b.openedAt,
	}
}
