package engine

import (
	"context"
	"errors"
	"testing"

	"pivot-itm-bot/internal/types"
)

var testRef = types.InstrumentRef{Symbol: "NIFTY2630518400CE", Segment: "NFO-OPT", Exchange: "NFO", LotSize: 65}

func openSession() *DaySession {
	s := newDaySession("2026-03-04")
	s.Pivot = &types.PivotLevel{Value: 18500}
	s.Bias = types.BiasBullish
	return s
}

func TestEnterOpensPosition(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 10, 0))
	lc := h.eng.lifecycle
	s := openSession()

	pos, err := lc.Enter(context.Background(), s, testRef, types.DirectionCall)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if pos.EntryPrice != 121 || pos.Quantity != 65 || pos.Invested != 7865 {
		t.Errorf("position = %+v", pos)
	}
	if pos.StopLoss != 108.9 || pos.ProfitTarget != 133.1 {
		t.Errorf("levels = %.2f / %.2f, want 108.90 / 133.10", pos.StopLoss, pos.ProfitTarget)
	}
	if pos.PivotReference != 18500 || pos.EntryOrderID != "B1" {
		t.Errorf("pivot/order = %.2f %s", pos.PivotReference, pos.EntryOrderID)
	}
	if s.TradesExecuted != 1 || lc.State() != StateOpen {
		t.Errorf("trades = %d, state = %s", s.TradesExecuted, lc.State())
	}
	if len(h.exec.buys) != 1 || h.exec.buys[0].Qty != 65 || h.exec.buys[0].Price != 121 {
		t.Errorf("buys = %+v", h.exec.buys)
	}
	if len(h.sink.entered) != 1 {
		t.Errorf("sink entered = %d, want 1", len(h.sink.entered))
	}
}

func TestEnterRejectedAtCap(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 10, 0))
	s := openSession()
	s.TradesExecuted = h.cfg.MaxDailyTrades

	_, err := h.eng.lifecycle.Enter(context.Background(), s, testRef, types.DirectionCall)
	if !errors.Is(err, ErrTradeCapReached) {
		t.Fatalf("err = %v, want ErrTradeCapReached", err)
	}
	if s.TradesExecuted != h.cfg.MaxDailyTrades || h.eng.lifecycle.State() != StateIdle {
		t.Errorf("state changed: trades = %d, state = %s", s.TradesExecuted, h.eng.lifecycle.State())
	}
	if h.md.optionCalls != 0 || len(h.exec.buys) != 0 {
		t.Errorf("option reads = %d, buys = %d; want none", h.md.optionCalls, len(h.exec.buys))
	}
}

func TestEnterRejectedWithOpenPosition(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 10, 0))
	s := openSession()
	if _, err := h.eng.lifecycle.Enter(context.Background(), s, testRef, types.DirectionCall); err != nil {
		t.Fatalf("first Enter: %v", err)
	}
	if _, err := h.eng.lifecycle.Enter(context.Background(), s, testRef, types.DirectionCall); !errors.Is(err, ErrPositionOpen) {
		t.Errorf("second Enter err = %v, want ErrPositionOpen", err)
	}
	if s.TradesExecuted != 1 || len(h.exec.buys) != 1 {
		t.Errorf("trades = %d, buys = %d", s.TradesExecuted, len(h.exec.buys))
	}
}

func TestEnterPriceGuard(t *testing.T) {
	tests := []struct {
		name    string
		options []float64
		optErr  error
		wantErr error
	}{
		{"diverging reads", []float64{103, 109}, nil, ErrPriceUnstable},
		{"within five percent", []float64{100, 105}, nil, nil},
		{"quote unavailable", nil, errors.New("timeout"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, at(2026, 3, 4, 10, 0))
			h.md.options = tt.options
			h.md.optionErr = tt.optErr
			s := openSession()

			_, err := h.eng.lifecycle.Enter(context.Background(), s, testRef, types.DirectionCall)
			switch {
			case tt.optErr != nil:
				if err == nil {
					t.Fatal("expected abort on unavailable quote")
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("Enter: %v", err)
				}
				return
			}
			if s.TradesExecuted != 0 || len(h.exec.buys) != 0 || h.eng.lifecycle.State() != StateIdle {
				t.Errorf("aborted entry changed state: trades = %d, buys = %d, state = %s",
					s.TradesExecuted, len(h.exec.buys), h.eng.lifecycle.State())
			}
		})
	}
}

func TestEnterExecutorReject(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 10, 0))
	h.exec.buyErr = errors.New("RMS: margin exceeds")
	s := openSession()

	if _, err := h.eng.lifecycle.Enter(context.Background(), s, testRef, types.DirectionCall); err == nil {
		t.Fatal("expected executor rejection")
	}
	if s.TradesExecuted != 0 || h.eng.lifecycle.HasPosition() || h.eng.lifecycle.State() != StateIdle {
		t.Errorf("trades = %d, has position = %v, state = %s",
			s.TradesExecuted, h.eng.lifecycle.HasPosition(), h.eng.lifecycle.State())
	}
}

func TestMonitorExits(t *testing.T) {
	tests := []struct {
		name       string
		stop, tgt  float64
		price      float64
		wantReason types.ExitReason
		wantExit   bool
	}{
		{"exactly at stop", 90, 110, 90, types.ExitStopLoss, true},
		{"below stop", 90, 110, 85.5, types.ExitStopLoss, true},
		{"exactly at target", 90, 110, 110, types.ExitProfitTarget, true},
		{"between levels", 90, 110, 100, "", false},
		{"stop and target both hit", 100, 100, 100, types.ExitStopLoss, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, at(2026, 3, 4, 11, 0))
			h.md.options = []float64{tt.price}
			lc := h.eng.lifecycle
			s := openSession()
			s.TradesExecuted = 1
			lc.positions.open(types.Position{
				Symbol: testRef.Symbol, Exchange: "NFO", Direction: types.DirectionCall,
				EntryPrice: 100, Quantity: 65, StopLoss: tt.stop, ProfitTarget: tt.tgt, LastPrice: 100,
			})

			reason, exited, err := lc.Monitor(context.Background(), s, h.now)
			if err != nil {
				t.Fatalf("Monitor: %v", err)
			}
			if exited != tt.wantExit || reason != tt.wantReason {
				t.Errorf("Monitor = %q, %v; want %q, %v", reason, exited, tt.wantReason, tt.wantExit)
			}
			if tt.wantExit {
				if lc.HasPosition() || len(h.journal.recs) != 1 {
					t.Fatalf("position kept = %v, journal = %d", lc.HasPosition(), len(h.journal.recs))
				}
				rec := h.journal.recs[0]
				if rec.ExitReason != tt.wantReason || rec.PnL != (tt.price-100)*65 {
					t.Errorf("record = %+v", rec)
				}
			} else if !lc.HasPosition() {
				t.Error("position closed without a trigger")
			}
		})
	}
}

func TestMonitorSkipsOnMissingQuote(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 11, 0))
	h.md.optionErr = errors.New("Too many requests")
	lc := h.eng.lifecycle
	lc.positions.open(types.Position{Symbol: testRef.Symbol, EntryPrice: 100, Quantity: 65, StopLoss: 90, ProfitTarget: 110})

	_, exited, err := lc.Monitor(context.Background(), openSession(), h.now)
	if err != nil || exited {
		t.Errorf("Monitor = %v, %v; want no exit", exited, err)
	}
	if !lc.HasPosition() || len(h.exec.sells) != 0 {
		t.Error("position must stay open on missing data")
	}
}

func TestForcedEODExitFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		lastPrice float64
		wantPrice float64
	}{
		{"last known price", 130, 130},
		{"entry price when nothing seen", 0, 121},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, at(2026, 3, 4, 15, 25))
			h.md.optionErr = errors.New("feed down")
			lc := h.eng.lifecycle
			lc.positions.open(types.Position{
				Symbol: testRef.Symbol, EntryPrice: 121, Quantity: 65,
				StopLoss: 108.9, ProfitTarget: 133.1, LastPrice: tt.lastPrice,
			})

			reason, exited, err := lc.Monitor(context.Background(), openSession(), h.now)
			if err != nil || !exited || reason != types.ExitEOD {
				t.Fatalf("Monitor = %q, %v, %v; want EOD exit", reason, exited, err)
			}
			if len(h.exec.sells) != 1 || h.exec.sells[0].Price != tt.wantPrice {
				t.Errorf("sells = %+v, want price %.2f", h.exec.sells, tt.wantPrice)
			}
		})
	}
}

func TestForcedEODExitBeatsProfitTarget(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 15, 20))
	h.md.options = []float64{200}
	lc := h.eng.lifecycle
	lc.positions.open(types.Position{Symbol: testRef.Symbol, EntryPrice: 121, Quantity: 65, StopLoss: 108.9, ProfitTarget: 133.1})

	reason, _, err := lc.Monitor(context.Background(), openSession(), h.now)
	if err != nil || reason != types.ExitEOD {
		t.Errorf("reason = %q, err = %v; want EOD_EXIT", reason, err)
	}
}

func TestExitRejectKeepsPositionOpen(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 11, 0))
	h.exec.sellErr = errors.New("exchange closed")
	lc := h.eng.lifecycle
	lc.positions.open(types.Position{Symbol: testRef.Symbol, EntryPrice: 100, Quantity: 65, StopLoss: 90, ProfitTarget: 110})

	if _, err := lc.Exit(context.Background(), openSession(), 85, types.ExitStopLoss); err == nil {
		t.Fatal("expected exit error")
	}
	if !lc.HasPosition() || lc.State() != StateOpen || len(h.journal.recs) != 0 {
		t.Errorf("has = %v, state = %s, journal = %d", lc.HasPosition(), lc.State(), len(h.journal.recs))
	}
}

func TestExitWithoutPosition(t *testing.T) {
	h := newHarness(t, at(2026, 3, 4, 11, 0))
	if _, err := h.eng.lifecycle.Exit(context.Background(), openSession(), 100, types.ExitStopLoss); !errors.Is(err, ErrNoPosition) {
		t.Errorf("err = %v, want ErrNoPosition", err)
	}
}
