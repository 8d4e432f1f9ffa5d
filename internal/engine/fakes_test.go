package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"pivot-itm-bot/internal/breaker"
	"pivot-itm-bot/internal/calendar"
	"pivot-itm-bot/internal/fetch"
	"pivot-itm-bot/internal/instruments"
	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/store"
	"pivot-itm-bot/internal/types"
)

var ist = time.FixedZone("IST", 19800)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, ist)
}

type fakeMarket struct {
	spots     []float64
	spotCalls int
	panicSpot bool

	options     []float64
	optionErr   error
	optionCalls int

	daily      []types.Candle
	dailyErr   error
	dailyCalls int

	opening      *types.Candle
	openingCalls int
}

func (f *fakeMarket) SpotPrice(context.Context) (float64, error) {
	if f.panicSpot {
		panic("spot feed exploded")
	}
	f.spotCalls++
	if len(f.spots) == 0 {
		return 0, errors.New("no spot")
	}
	return f.spots[min(f.spotCalls-1, len(f.spots)-1)], nil
}

func (f *fakeMarket) OptionPrice(context.Context, types.InstrumentRef) (float64, error) {
	f.optionCalls++
	if f.optionErr != nil {
		return 0, f.optionErr
	}
	if len(f.options) == 0 {
		return 0, errors.New("no option quote")
	}
	return f.options[min(f.optionCalls-1, len(f.options)-1)], nil
}

func (f *fakeMarket) DailyCandles(context.Context, time.Time, time.Time) ([]types.Candle, error) {
	f.dailyCalls++
	return f.daily, f.dailyErr
}

func (f *fakeMarket) OpeningRangeCandle(context.Context, time.Time, time.Time) (*types.Candle, error) {
	f.openingCalls++
	return f.opening, nil
}

type fakeCatalog struct {
	rows  []types.Instrument
	calls int
}

func (f *fakeCatalog) ListInstruments(context.Context, string) ([]types.Instrument, error) {
	f.calls++
	return f.rows, nil
}

type fakeExecutor struct {
	buys, sells     []types.OrderReq
	buyErr, sellErr error
}

func (f *fakeExecutor) SubmitBuy(_ context.Context, req types.OrderReq) (types.OrderResp, error) {
	if f.buyErr != nil {
		return types.OrderResp{}, f.buyErr
	}
	f.buys = append(f.buys, req)
	return types.OrderResp{OrderID: "B1", Status: "SIMULATED"}, nil
}

func (f *fakeExecutor) SubmitSell(_ context.Context, req types.OrderReq, _ types.ExitReason) (types.OrderResp, error) {
	if f.sellErr != nil {
		return types.OrderResp{}, f.sellErr
	}
	f.sells = append(f.sells, req)
	return types.OrderResp{OrderID: "S1", Status: "SIMULATED"}, nil
}

type memJournal struct {
	recs []types.TradeRecord
}

func (m *memJournal) AppendTradeRecord(_ context.Context, rec types.TradeRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

type fakeReporter struct {
	dates []string
}

func (f *fakeReporter) SummarizeDay(_ context.Context, t time.Time) (types.DailyReport, error) {
	d := t.Format("2006-01-02")
	f.dates = append(f.dates, d)
	return types.DailyReport{Date: d}, nil
}

type recSink struct {
	statuses []string
	events   []string
	entered  []types.Position
	exited   []types.TradeRecord
	prices   []float64
}

func (r *recSink) RecordMarketSnapshot(interfaces.MarketSnapshot) {}
func (r *recSink) RecordStrategyStatus(s string)                  { r.statuses = append(r.statuses, s) }
func (r *recSink) RecordTradeEntered(p types.Position)            { r.entered = append(r.entered, p) }
func (r *recSink) RecordTradePriceUpdate(p float64)               { r.prices = append(r.prices, p) }
func (r *recSink) RecordTradeExited(rec types.TradeRecord)        { r.exited = append(r.exited, rec) }
func (r *recSink) RecordEvent(m string)                           { r.events = append(r.events, m) }

func (r *recSink) lastStatus() string {
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

type harness struct {
	eng     *Engine
	cfg     *store.Config
	md      *fakeMarket
	cat     *fakeCatalog
	exec    *fakeExecutor
	journal *memJournal
	sink    *recSink
	rep     *fakeReporter
	now     time.Time
}

func dayCandle(y int, m time.Month, d int, h, l, c float64) types.Candle {
	return types.Candle{Ts: time.Date(y, m, d, 0, 0, 0, 0, ist), Open: c, High: h, Low: l, Close: c}
}

// newHarness builds an engine for Wednesday 2026-03-04 with a prior-session
// pivot of 18500, a bullish opening candle and weekly contracts expiring the
// next day.
func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()

	cfg := store.Default()
	cal, err := calendar.New(cfg)
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}

	h := &harness{
		cfg: cfg,
		md: &fakeMarket{
			spots:   []float64{18490, 18505, 18512},
			options: []float64{120, 121},
			daily: []types.Candle{
				dayCandle(2026, 3, 2, 18600, 18400, 18500),
				dayCandle(2026, 3, 4, 18550, 18480, 18510),
			},
			opening: &types.Candle{Ts: at(2026, 3, 4, 9, 15), Open: 18510, High: 18530, Low: 18505, Close: 18520},
		},
		cat:     &fakeCatalog{rows: catalogRows()},
		exec:    &fakeExecutor{},
		journal: &memJournal{},
		sink:    &recSink{},
		rep:     &fakeReporter{},
		now:     now,
	}
	clock := func() time.Time { return h.now }
	noSleep := func(context.Context, time.Duration) error { return nil }

	f := fetch.New(cfg.Fetch.MaxRetries, cfg.Fetch.RetryDelay)
	f.Sleep = noSleep

	eng, err := New(Deps{
		Config:        cfg,
		Calendar:      cal,
		Market:        h.md,
		Resolver:      instruments.NewResolver(h.cat, cfg.OptionSegment, cfg.LotSize, cfg.ExpiryWindowDays),
		Executor:      h.exec,
		Journal:       h.journal,
		Sink:          h.sink,
		Reporter:      h.rep,
		Fetcher:       f,
		SpotBreaker:   breaker.New("spot", cfg.Breaker.Threshold, cfg.Breaker.Cooldown, breaker.WithClock(clock)),
		OptionBreaker: breaker.New("option", cfg.Breaker.Threshold, cfg.Breaker.Cooldown, breaker.WithClock(clock)),
		Now:           clock,
		Sleep:         noSleep,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.eng = eng
	return h
}

func catalogRows() []types.Instrument {
	exp := time.Date(2026, 3, 5, 0, 0, 0, 0, ist)
	row := func(sym string, strike float64, typ string) types.Instrument {
		return types.Instrument{
			Symbol: sym, Underlying: "NIFTY", Segment: "NFO-OPT", Exchange: "NFO",
			Expiry: exp, Strike: strike, Type: typ, LotSize: 65, BuyAllowed: true,
		}
	}
	return []types.Instrument{
		row("NIFTY2630518400CE", 18400, "CE"),
		row("NIFTY2630518500CE", 18500, "CE"),
		row("NIFTY2630518500PE", 18500, "PE"),
		row("NIFTY2630518600PE", 18600, "PE"),
	}
}
