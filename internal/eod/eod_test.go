package eod

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"pivot-itm-bot/internal/types"
)

type memSource map[string][]types.TradeRecord

func (m memSource) ReadDay(date string) ([]types.TradeRecord, error) { return m[date], nil }

func TestAggregate(t *testing.T) {
	trades := []types.TradeRecord{
		{PnL: 500},
		{PnL: -300},
		{PnL: -400},
		{PnL: 0},
		{PnL: 1000},
	}
	rep := Aggregate("2026-03-04", trades)
	if rep.Trades != 5 || rep.Wins != 2 || rep.Losses != 3 {
		t.Errorf("counts = %d/%d/%d", rep.Trades, rep.Wins, rep.Losses)
	}
	if rep.TotalPnL != 800 {
		t.Errorf("total = %v, want 800", rep.TotalPnL)
	}
	if rep.WinRate != 40 {
		t.Errorf("win rate = %v, want 40", rep.WinRate)
	}
	if rep.AvgWin != 750 {
		t.Errorf("avg win = %v, want 750", rep.AvgWin)
	}
	if rep.AvgLoss != -233.33 {
		t.Errorf("avg loss = %v, want -233.33", rep.AvgLoss)
	}
	// peak 500, trough -200
	if rep.MaxDrawdown != 700 {
		t.Errorf("drawdown = %v, want 700", rep.MaxDrawdown)
	}
}

func TestSummarizeDayWritesCSV(t *testing.T) {
	dir := t.TempDir()
	ist := time.FixedZone("IST", 19800)
	entry := time.Date(2026, 3, 4, 10, 0, 0, 0, ist)
	src := memSource{"2026-03-04": {{
		Symbol: "NIFTY2630518500CE", Direction: types.DirectionCall,
		EntryPrice: 100, ExitPrice: 110, Quantity: 65, PnL: 650, PnLPercent: 10,
		ExitReason: types.ExitProfitTarget, EntryTime: entry, ExitTime: entry.Add(time.Hour),
	}}}

	s := NewSummarizer(src, dir, ist)
	rep, err := s.SummarizeDay(context.Background(), entry)
	if err != nil {
		t.Fatalf("SummarizeDay: %v", err)
	}
	if rep.CSVPath == "" {
		t.Fatal("expected csv path")
	}
	b, err := os.ReadFile(rep.CSVPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	body := string(b)
	if !strings.Contains(body, "NIFTY2630518500CE,CALL,10:00:00,11:00:00,100.00,110.00,65,650.00,10.00,PROFIT_TARGET") {
		t.Errorf("csv body = %s", body)
	}
	if !strings.Contains(body, "TOTAL") {
		t.Errorf("missing total row: %s", body)
	}
}

func TestSummarizeDayNoTrades(t *testing.T) {
	s := NewSummarizer(memSource{}, t.TempDir(), nil)
	rep, err := s.SummarizeDay(context.Background(), time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SummarizeDay: %v", err)
	}
	if rep.Trades != 0 || rep.CSVPath != "" {
		t.Errorf("report = %+v", rep)
	}
}
