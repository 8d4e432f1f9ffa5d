// Package metrics holds the Prometheus collectors the bot updates while running.
//
//   - pivot_bot_breaker_open{name}               1 while a breaker is open
//   - pivot_bot_fetch_attempts_total{name,result} fetch attempts by outcome (ok|error|out_of_range|breaker_open)
//   - pivot_bot_orders_total{mode,side}          orders submitted
//   - pivot_bot_trades_total{result}             closed trades (win|loss)
//   - pivot_bot_exit_reasons_total{reason}       exits by reason
//   - pivot_bot_realized_pnl                     realized P&L for the current day
//   - pivot_bot_daily_trades                     trades entered today
//   - pivot_bot_pivot                            today's pivot level
//
// Collectors are registered on the default registry in init() and served at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	breakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pivot_bot_breaker_open",
			Help: "1 while the named circuit breaker is open",
		},
		[]string{"name"},
	)

	fetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pivot_bot_fetch_attempts_total",
			Help: "Guarded fetch attempts by outcome",
		},
		[]string{"name", "result"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pivot_bot_orders_total",
			Help: "Orders submitted",
		},
		[]string{"mode", "side"},
	)

	trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pivot_bot_trades_total",
			Help: "Closed trades by result (win|loss)",
		},
		[]string{"result"},
	)

	exitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pivot_bot_exit_reasons_total",
			Help: "Exits split by reason",
		},
		[]string{"reason"},
	)

	realizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pivot_bot_realized_pnl",
			Help: "Realized P&L for the current trading day",
		},
	)

	dailyTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pivot_bot_daily_trades",
			Help: "Trades entered in the current trading day",
		},
	)

	pivotLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pivot_bot_pivot",
			Help: "Pivot level for the current trading day",
		},
	)
)

func init() {
	prometheus.MustRegister(breakerOpen, fetchAttempts)
	prometheus.MustRegister(orders, trades, exitReasons)
	prometheus.MustRegister(realizedPnL, dailyTrades, pivotLevel)
}

func SetBreakerOpen(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	breakerOpen.WithLabelValues(name).Set(v)
}

func IncFetchAttempt(name, result string) { fetchAttempts.WithLabelValues(name, result).Inc() }
func IncOrder(mode, side string)          { orders.WithLabelValues(mode, side).Inc() }
func SetDailyTrades(n int)                { dailyTrades.Set(float64(n)) }
func SetPivot(v float64)                  { pivotLevel.Set(v) }

// ObserveExit records a closed trade and adds its P&L to the day's total.
func ObserveExit(reason string, pnl float64) {
	result := "win"
	if pnl <= 0 {
		result = "loss"
	}
	trades.WithLabelValues(result).Inc()
	exitReasons.WithLabelValues(reason).Inc()
	realizedPnL.Add(pnl)
}

// ResetDay zeroes the per-day gauges.
func ResetDay() {
	realizedPnL.Set(0)
	dailyTrades.Set(0)
}
