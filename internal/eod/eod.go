package eod

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"pivot-itm-bot/internal/types"
)

// TradeSource reads back the journaled trades of one date.
type TradeSource interface {
	ReadDay(date string) ([]types.TradeRecord, error)
}

type eodSummarizer struct {
	source TradeSource
	dir    string
	loc    *time.Location
}

func (s *eodSummarizer) SummarizeDay(_ context.Context, t time.Time) (types.DailyReport, error) {
	date := t.In(s.loc).Format("2006-01-02")
	trades, err := s.source.ReadDay(date)
	if err != nil {
		return types.DailyReport{Date: date}, fmt.Errorf("read journal %s: %w", date, err)
	}

	rep := Aggregate(date, trades)
	if rep.Trades == 0 {
		return rep, nil
	}

	outPath := eodCSVPath(s.dir, date)
	if err := writeCSV(outPath, trades, rep); err != nil {
		return rep, err
	}
	rep.CSVPath = outPath
	return rep, nil
}

// Aggregate computes the report figures. A trade with pnl <= 0 is a loss.
// Max drawdown is the largest peak-to-trough fall of cumulative P&L.
func Aggregate(date string, trades []types.TradeRecord) types.DailyReport {
	rep := types.DailyReport{Date: date, Trades: len(trades)}
	var (
		total, winSum, lossSum decimal.Decimal
		peak, drawdown         decimal.Decimal
	)
	for _, tr := range trades {
		pnl := decimal.NewFromFloat(tr.PnL)
		total = total.Add(pnl)
		if tr.PnL > 0 {
			rep.Wins++
			winSum = winSum.Add(pnl)
		} else {
			rep.Losses++
			lossSum = lossSum.Add(pnl)
		}
		if total.GreaterThan(peak) {
			peak = total
		}
		if dd := peak.Sub(total); dd.GreaterThan(drawdown) {
			drawdown = dd
		}
	}
	rep.TotalPnL = total.Round(2).InexactFloat64()
	rep.MaxDrawdown = drawdown.Round(2).InexactFloat64()
	if rep.Trades > 0 {
		rep.WinRate = decimal.NewFromInt(int64(rep.Wins)).Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(rep.Trades))).Round(2).InexactFloat64()
	}
	if rep.Wins > 0 {
		rep.AvgWin = winSum.Div(decimal.NewFromInt(int64(rep.Wins))).Round(2).InexactFloat64()
	}
	if rep.Losses > 0 {
		rep.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(rep.Losses))).Round(2).InexactFloat64()
	}
	return rep
}

func writeCSV(outPath string, trades []types.TradeRecord, rep types.DailyReport) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"symbol", "direction", "entry_time", "exit_time", "entry_price", "exit_price", "quantity", "pnl", "pnl_percent", "exit_reason"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, tr := range trades {
		rec := []string{
			tr.Symbol,
			string(tr.Direction),
			tr.EntryTime.Format("15:04:05"),
			tr.ExitTime.Format("15:04:05"),
			fmt.Sprintf("%.2f", tr.EntryPrice),
			fmt.Sprintf("%.2f", tr.ExitPrice),
			strconv.Itoa(tr.Quantity),
			fmt.Sprintf("%.2f", tr.PnL),
			fmt.Sprintf("%.2f", tr.PnLPercent),
			string(tr.ExitReason),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	_ = w.Write([]string{"TOTAL", "", "", "", "", "", "", fmt.Sprintf("%.2f", rep.TotalPnL), "", fmt.Sprintf("wins=%d losses=%d", rep.Wins, rep.Losses)})
	w.Flush()
	return w.Error()
}
