package types

import "time"

// Candle is an immutable OHLC bar. Ts is the bar's open time.
type Candle struct {
	Ts                          time.Time
	Open, High, Low, Close, Vol float64
}

// PivotLevel is the day's reference level derived from the prior session.
type PivotLevel struct {
	Value   float64
	ForDate time.Time
	// Source is the completed session the value was computed from.
	Source Candle
}

type Bias string

const (
	BiasUnset   Bias = "UNSET"
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// Direction is the option side bought for a bias.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// OptionType maps a direction to the exchange option type code.
func (d Direction) OptionType() string {
	if d == DirectionPut {
		return "PE"
	}
	return "CE"
}

// DirectionFor returns the trade direction for a directional bias.
func DirectionFor(b Bias) (Direction, bool) {
	switch b {
	case BiasBullish:
		return DirectionCall, true
	case BiasBearish:
		return DirectionPut, true
	}
	return "", false
}

type ExitReason string

const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
	ExitEOD          ExitReason = "EOD_EXIT"
)

// Instrument is one row of the broker's static instrument catalog.
type Instrument struct {
	Symbol     string
	Underlying string
	Segment    string
	Exchange   string
	Expiry     time.Time
	Strike     float64
	Type       string // CE, PE, FUT
	LotSize    int
	BuyAllowed bool
}

// InstrumentRef is a resolved, tradable option contract.
type InstrumentRef struct {
	Symbol   string
	Segment  string
	Exchange string
	LotSize  int
	Strike   float64
	Expiry   time.Time
}

// Position is the single open exposure of a trading day.
type Position struct {
	Symbol         string
	Segment        string
	Exchange       string
	Direction      Direction
	EntryPrice     float64
	Quantity       int
	EntryTime      time.Time
	Invested       float64
	StopLoss       float64
	ProfitTarget   float64
	PivotReference float64
	// LastPrice is the most recent valid quote, used as the forced-exit fallback.
	LastPrice    float64
	EntryOrderID string
}

// TradeRecord is the immutable journal row written when a position closes.
type TradeRecord struct {
	Date         string     `json:"date"`
	Symbol       string     `json:"symbol"`
	Direction    Direction  `json:"direction"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	Quantity     int        `json:"quantity"`
	Invested     float64    `json:"invested"`
	PnL          float64    `json:"pnl"`
	PnLPercent   float64    `json:"pnl_percent"`
	ExitReason   ExitReason `json:"exit_reason"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     time.Time  `json:"exit_time"`
	StopLoss     float64    `json:"stop_loss"`
	ProfitTarget float64    `json:"profit_target"`
	Pivot        float64    `json:"pivot"`
	EntryOrderID string     `json:"entry_order_id,omitempty"`
	ExitOrderID  string     `json:"exit_order_id,omitempty"`
}

type OrderReq struct {
	Symbol, Exchange, Side string
	Qty                    int
	Price                  float64
	Tag                    string
}

type OrderResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DailyReport aggregates the closed trades of one trading day.
type DailyReport struct {
	Date        string  `json:"date"`
	Trades      int     `json:"trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	MaxDrawdown float64 `json:"max_drawdown"`
	CSVPath     string  `json:"csv_path,omitempty"`
}

// TickResult tells the run loop what a tick did and how long to wait.
type TickResult struct {
	Phase string
	Sleep time.Duration
}
