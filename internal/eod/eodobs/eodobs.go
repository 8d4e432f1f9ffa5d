package eodobs

import (
	"context"
	"time"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/trace"
	"pivot-itm-bot/internal/types"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(ctx context.Context, t time.Time) (types.DailyReport, error) {
	ctx, span := trace.StartSpan(ctx, "eod.Summarize")
	defer span.End()

	date := t.Format("2006-01-02")
	logger.DebugSkip(ctx, 1, "Starting daily report generation", "date", date)

	rep, err := oes.summarizer.SummarizeDay(ctx, t)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Daily report generation failed", err, "date", date)
		return rep, err
	}

	if rep.Trades == 0 {
		logger.InfoSkip(ctx, 1, "No trades found for daily report", "date", rep.Date)
		return rep, nil
	}

	logger.InfoSkip(ctx, 1, "Daily report generated",
		"date", rep.Date,
		"trades", rep.Trades,
		"wins", rep.Wins,
		"losses", rep.Losses,
		"win_rate", rep.WinRate,
		"total_pnl", rep.TotalPnL,
		"max_drawdown", rep.MaxDrawdown,
		"csv_path", rep.CSVPath,
	)

	return rep, nil
}
