package engine

import (
	"context"
	"errors"
	"time"

	"pivot-itm-bot/internal/breaker"
	"pivot-itm-bot/internal/calendar"
	"pivot-itm-bot/internal/fetch"
	"pivot-itm-bot/internal/instruments"
	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/store"
)

// Deps are the engine's collaborators. Sink, Reporter, Decisions, Now and
// Sleep are optional.
type Deps struct {
	Config        *store.Config
	Calendar      *calendar.Calendar
	Market        interfaces.MarketData
	Resolver      *instruments.Resolver
	Executor      interfaces.Executor
	Journal       interfaces.Journal
	Decisions     DecisionLog
	Sink          interfaces.Sink
	Reporter      interfaces.EodSummarizer
	Fetcher       *fetch.Fetcher
	SpotBreaker   *breaker.Breaker
	OptionBreaker *breaker.Breaker

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(d Deps) (*Engine, error) {
	if d.Config == nil || d.Calendar == nil || d.Market == nil || d.Resolver == nil || d.Executor == nil {
		return nil, errors.New("engine: config, calendar, market data, resolver and executor are required")
	}
	if d.Fetcher == nil || d.SpotBreaker == nil || d.OptionBreaker == nil {
		return nil, errors.New("engine: fetcher and both breakers are required")
	}
	if d.Sink == nil {
		d.Sink = interfaces.NopSink{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Sleep == nil {
		d.Sleep = sleepCtx
	}

	cfg := d.Config
	orders := newOrderExecutor(d.Executor, d.Journal, d.Decisions)
	lc := &Lifecycle{
		cfg: LifecycleConfig{
			LotSize:          cfg.LotSize,
			Lots:             cfg.Lots,
			MaxDailyTrades:   cfg.MaxDailyTrades,
			StopLossPct:      cfg.StopLossPct,
			ProfitTargetPct:  cfg.ProfitTargetPct,
			ConfirmDelay:     cfg.EntryConfirmDelay,
			MaxDivergencePct: cfg.MaxEntryDivergencePct,
			OptionRange:      fetch.Range{Min: cfg.Ranges.OptionMin, Max: cfg.Ranges.OptionMax},
		},
		md:        d.Market,
		fetcher:   d.Fetcher,
		guard:     d.OptionBreaker,
		sink:      d.Sink,
		positions: newPositionManager(),
		risk:      newRiskManager(cfg.MaxDailyTrades, cfg.MaxEntryDivergencePct),
		stops:     newStopManager(cfg.StopLossPct, cfg.ProfitTargetPct),
		orders:    orders,
		eodDue:    d.Calendar.PastEODExit,
		now:       d.Now,
		sleep:     d.Sleep,
	}

	return &Engine{
		cfg:           cfg,
		cal:           d.Calendar,
		md:            d.Market,
		resolver:      d.Resolver,
		sink:          d.Sink,
		reporter:      d.Reporter,
		fetcher:       d.Fetcher,
		spotBreaker:   d.SpotBreaker,
		optionBreaker: d.OptionBreaker,
		spotRange:     fetch.Range{Min: cfg.Ranges.SpotMin, Max: cfg.Ranges.SpotMax},
		lifecycle:     lc,
		orders:        orders,
		now:           d.Now,
	}, nil
}
