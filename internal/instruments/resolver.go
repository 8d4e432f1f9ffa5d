// Package instruments maps a strike selection onto a concrete option contract
// from the broker's instrument catalog.
package instruments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/types"
)

var (
	ErrNoExpiry        = errors.New("instruments: no weekly expiry in window")
	ErrNotFound        = errors.New("instruments: contract not found")
	ErrLotSizeMismatch = errors.New("instruments: lot size mismatch")
	ErrNoCatalog       = errors.New("instruments: catalog not loaded")
)

// ITMStrike rounds spot to a strike step on the in-the-money side: down for
// calls, up for puts. An exact multiple is its own strike either way.
func ITMStrike(spot float64, d types.Direction, step int) int {
	s := int(math.Floor(spot))
	if d == types.DirectionPut {
		return (s + step - 1) / step * step
	}
	return s / step * step
}

// Key identifies one cached resolution.
type Key struct {
	Underlying string
	Expiry     string // YYYY-MM-DD
	Strike     int
	OptionType string
}

type Resolver struct {
	catalog    interfaces.Catalog
	segment    string
	lotSize    int
	windowDays int

	mu    sync.Mutex
	rows  []types.Instrument
	cache map[Key]types.InstrumentRef
}

func NewResolver(catalog interfaces.Catalog, segment string, lotSize, windowDays int) *Resolver {
	return &Resolver{
		catalog:    catalog,
		segment:    segment,
		lotSize:    lotSize,
		windowDays: windowDays,
		cache:      make(map[Key]types.InstrumentRef),
	}
}

// LoadCatalog replaces the in-memory catalog. Called once per trading day.
func (r *Resolver) LoadCatalog(ctx context.Context) error {
	rows, err := r.catalog.ListInstruments(ctx, r.segment)
	if err != nil {
		return fmt.Errorf("load instrument catalog: %w", err)
	}
	r.mu.Lock()
	r.rows = rows
	r.mu.Unlock()
	logger.Info(ctx, "Instrument catalog loaded", "segment", r.segment, "rows", len(rows))
	return nil
}

// Reset clears the resolution cache.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[Key]types.InstrumentRef)
	r.mu.Unlock()
}

func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// NearestExpiry returns the earliest option expiry of underlying that is on or
// after today and no more than windowDays away.
func (r *Resolver) NearestExpiry(underlying string, today time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		return time.Time{}, ErrNoCatalog
	}

	start := dateOf(today)
	limit := start.AddDate(0, 0, r.windowDays)
	var best time.Time
	for _, row := range r.rows {
		if row.Underlying != underlying || !isOption(row.Type) || row.Expiry.IsZero() {
			continue
		}
		exp := dateOf(row.Expiry.In(today.Location()))
		if exp.Before(start) || exp.After(limit) {
			continue
		}
		if best.IsZero() || exp.Before(best) {
			best = exp
		}
	}
	if best.IsZero() {
		return time.Time{}, fmt.Errorf("%s within %d days of %s: %w", underlying, r.windowDays, start.Format("2006-01-02"), ErrNoExpiry)
	}
	return best, nil
}

// Resolve finds the buy-allowed contract nearest to strike for the given
// expiry and option type. Ties keep the earlier catalog row.
func (r *Resolver) Resolve(underlying string, expiry time.Time, strike int, optionType string) (types.InstrumentRef, error) {
	key := Key{Underlying: underlying, Expiry: expiry.Format("2006-01-02"), Strike: strike, OptionType: optionType}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.cache[key]; ok {
		return ref, nil
	}
	if r.rows == nil {
		return types.InstrumentRef{}, ErrNoCatalog
	}

	var (
		best     *types.Instrument
		bestDiff = math.Inf(1)
	)
	for i := range r.rows {
		row := &r.rows[i]
		if row.Underlying != underlying || row.Type != optionType || !row.BuyAllowed {
			continue
		}
		if row.Expiry.In(expiry.Location()).Format("2006-01-02") != key.Expiry {
			continue
		}
		if diff := math.Abs(row.Strike - float64(strike)); diff < bestDiff {
			best, bestDiff = row, diff
		}
	}
	if best == nil {
		return types.InstrumentRef{}, fmt.Errorf("%s %s %d %s: %w", underlying, key.Expiry, strike, optionType, ErrNotFound)
	}
	if best.LotSize != r.lotSize {
		logger.Risk(context.Background(), best.Symbol, "LOT_SIZE_MISMATCH",
			"catalog_lot_size", best.LotSize,
			"configured_lot_size", r.lotSize,
		)
		return types.InstrumentRef{}, fmt.Errorf("%s: catalog lot %d, configured %d: %w", best.Symbol, best.LotSize, r.lotSize, ErrLotSizeMismatch)
	}

	ref := types.InstrumentRef{
		Symbol:   best.Symbol,
		Segment:  best.Segment,
		Exchange: best.Exchange,
		LotSize:  best.LotSize,
		Strike:   best.Strike,
		Expiry:   best.Expiry,
	}
	r.cache[key] = ref
	return ref, nil
}

func isOption(t string) bool { return t == "CE" || t == "PE" }

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
