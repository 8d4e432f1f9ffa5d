package eod

import (
	"time"

	"pivot-itm-bot/internal/interfaces"
)

// NewSummarizer reads trades from source and writes CSVs under dir/eod.
func NewSummarizer(source TradeSource, dir string, loc *time.Location) interfaces.EodSummarizer {
	if loc == nil {
		loc = istLocation()
	}
	return &eodSummarizer{source: source, dir: dir, loc: loc}
}
