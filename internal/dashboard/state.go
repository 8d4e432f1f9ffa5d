// Package dashboard holds the observable bot state and serves it over HTTP
// and WebSocket. The trading loop is the single writer; readers only ever
// receive copies.
package dashboard

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/types"
)

// Strategy statuses shown on the dashboard.
const (
	StatusWaitingForMarket   = "WAITING_FOR_MARKET"
	StatusMarketClosed       = "MARKET_CLOSED"
	StatusWaitingForBias     = "WAITING_FOR_BIAS"
	StatusNoTradeToday       = "NO_TRADE_TODAY"
	StatusWaitingForPullback = "WAITING_FOR_PULLBACK"
	StatusReadyToEnter       = "READY_TO_ENTER"
	StatusInTrade            = "IN_TRADE"
	StatusTradeLimitReached  = "TRADE_LIMIT_REACHED"
	StatusEntryCutoffReached = "ENTRY_CUTOFF_REACHED"
)

var _ interfaces.Sink = (*State)(nil)

type Market struct {
	Status          string     `json:"status"`
	Spot            float64    `json:"spot"`
	Pivot           float64    `json:"pivot"`
	Bias            types.Bias `json:"bias"`
	DistanceToPivot float64    `json:"distance_to_pivot"`
}

type Trade struct {
	Symbol       string          `json:"symbol"`
	Direction    types.Direction `json:"direction"`
	EntryPrice   float64         `json:"entry_price"`
	CurrentPrice float64         `json:"current_price"`
	Quantity     int             `json:"quantity"`
	StopLoss     float64         `json:"stop_loss"`
	ProfitTarget float64         `json:"profit_target"`
	PnL          float64         `json:"pnl"`
	PnLPercent   float64         `json:"pnl_percent"`
	EntryTime    time.Time       `json:"entry_time"`
}

type Event struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

type Metrics struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Snapshot is an immutable copy of the state.
type Snapshot struct {
	Market         Market              `json:"market"`
	StrategyStatus string              `json:"strategy_status"`
	CurrentTrade   *Trade              `json:"current_trade"`
	Trades         []types.TradeRecord `json:"trades"`
	Events         []Event             `json:"events"`
	Metrics        Metrics             `json:"metrics"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type State struct {
	maxEvents, maxTrades int
	now                  func() time.Time

	mu      sync.RWMutex
	market  Market
	status  string
	current *Trade
	trades  []types.TradeRecord
	events  []Event
	metrics Metrics
	peak    float64
	updated time.Time

	changes chan struct{}
}

func NewState(maxEvents, maxTrades int) *State {
	if maxEvents <= 0 {
		maxEvents = 200
	}
	if maxTrades <= 0 {
		maxTrades = 100
	}
	return &State{
		maxEvents: maxEvents,
		maxTrades: maxTrades,
		now:       time.Now,
		status:    StatusWaitingForMarket,
		market:    Market{Status: "CLOSED", Bias: types.BiasUnset},
		changes:   make(chan struct{}, 1),
	}
}

// Changes fires after every write. Notifications coalesce; a reader that
// falls behind sees the latest state, not every intermediate one.
func (s *State) Changes() <-chan struct{} { return s.changes }

func (s *State) touch() {
	s.updated = s.now()
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *State) RecordMarketSnapshot(m interfaces.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Spot != nil {
		s.market.Spot = *m.Spot
	}
	if m.Pivot != nil {
		s.market.Pivot = *m.Pivot
	}
	if m.Bias != nil {
		s.market.Bias = *m.Bias
	}
	if m.Status != "" {
		s.market.Status = m.Status
	}
	if s.market.Spot > 0 && s.market.Pivot > 0 {
		s.market.DistanceToPivot = round2(s.market.Spot - s.market.Pivot)
	}
	s.touch()
}

func (s *State) RecordStrategyStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == status {
		return
	}
	s.status = status
	s.touch()
}

func (s *State) RecordTradeEntered(p types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &Trade{
		Symbol:       p.Symbol,
		Direction:    p.Direction,
		EntryPrice:   p.EntryPrice,
		CurrentPrice: p.EntryPrice,
		Quantity:     p.Quantity,
		StopLoss:     p.StopLoss,
		ProfitTarget: p.ProfitTarget,
		EntryTime:    p.EntryTime,
	}
	s.status = StatusInTrade
	s.touch()
}

func (s *State) RecordTradePriceUpdate(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	c := s.current
	c.CurrentPrice = price
	c.PnL = round2((price - c.EntryPrice) * float64(c.Quantity))
	if c.EntryPrice > 0 {
		c.PnLPercent = round2((price - c.EntryPrice) / c.EntryPrice * 100)
	}
	s.touch()
}

func (s *State) RecordTradeExited(rec types.TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.trades = append(s.trades, rec)
	if over := len(s.trades) - s.maxTrades; over > 0 {
		s.trades = append([]types.TradeRecord(nil), s.trades[over:]...)
	}

	m := &s.metrics
	m.TotalTrades++
	if rec.PnL > 0 {
		m.Wins++
	} else {
		m.Losses++
	}
	m.TotalPnL = round2(m.TotalPnL + rec.PnL)
	m.WinRate = round2(float64(m.Wins) / float64(m.TotalTrades) * 100)
	if m.TotalPnL > s.peak {
		s.peak = m.TotalPnL
	}
	if dd := round2(s.peak - m.TotalPnL); dd > m.MaxDrawdown {
		m.MaxDrawdown = dd
	}
	s.touch()
}

func (s *State) RecordEvent(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Time: s.now().Format("15:04:05"), Message: message})
	if over := len(s.events) - s.maxEvents; over > 0 {
		s.events = append([]Event(nil), s.events[over:]...)
	}
	s.touch()
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Market:         s.market,
		StrategyStatus: s.status,
		Trades:         append([]types.TradeRecord{}, s.trades...),
		Events:         append([]Event{}, s.events...),
		Metrics:        s.metrics,
		UpdatedAt:      s.updated,
	}
	if s.current != nil {
		c := *s.current
		snap.CurrentTrade = &c
	}
	return snap
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
