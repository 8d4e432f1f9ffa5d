package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pivot-itm-bot/internal/dashboard"
	"pivot-itm-bot/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(1, 2).
			Width(80)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(18)

	profitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func money(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	if v > 0 {
		return profitStyle.Render(s)
	}
	if v < 0 {
		return lossStyle.Render(s)
	}
	return s
}

func renderReport(rep types.DailyReport, trades []types.TradeRecord) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("DAILY REPORT " + rep.Date))
	b.WriteString("\n")

	if rep.Trades == 0 {
		b.WriteString(panelStyle.Render(mutedStyle.Render("No trades recorded.")))
		return b.String()
	}

	summary := []string{
		row("Trades", fmt.Sprintf("%d", rep.Trades)),
		row("Wins / Losses", fmt.Sprintf("%d / %d", rep.Wins, rep.Losses)),
		row("Win rate", fmt.Sprintf("%.1f%%", rep.WinRate)),
		row("Total P&L", money(rep.TotalPnL)),
		row("Avg win", money(rep.AvgWin)),
		row("Avg loss", money(rep.AvgLoss)),
		row("Max drawdown", fmt.Sprintf("%.2f", rep.MaxDrawdown)),
	}
	if rep.CSVPath != "" {
		summary = append(summary, row("CSV", rep.CSVPath))
	}
	b.WriteString(panelStyle.Render(strings.Join(summary, "\n")))
	b.WriteString("\n")

	lines := make([]string, 0, len(trades))
	for _, t := range trades {
		lines = append(lines, fmt.Sprintf("%s  %-20s %-4s %8.2f -> %8.2f  %-16s %s",
			t.ExitTime.Format("15:04"), t.Symbol, t.Direction, t.EntryPrice, t.ExitPrice, t.ExitReason, money(t.PnL)))
	}
	if len(lines) > 0 {
		b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))
	}
	return b.String()
}

func renderStatus(snap dashboard.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("PIVOT ITM BOT " + snap.StrategyStatus))
	b.WriteString("\n")

	m := snap.Market
	market := []string{
		row("Market", m.Status),
		row("Spot", fmt.Sprintf("%.2f", m.Spot)),
		row("Pivot", fmt.Sprintf("%.2f", m.Pivot)),
		row("Bias", string(m.Bias)),
		row("Distance", fmt.Sprintf("%+.2f", m.DistanceToPivot)),
		row("Today", fmt.Sprintf("%d trades, P&L %s", snap.Metrics.TotalTrades, money(snap.Metrics.TotalPnL))),
	}
	b.WriteString(panelStyle.Render(strings.Join(market, "\n")))
	b.WriteString("\n")

	if t := snap.CurrentTrade; t != nil {
		trade := []string{
			row("Position", fmt.Sprintf("%s %s x%d", t.Symbol, t.Direction, t.Quantity)),
			row("Entry / LTP", fmt.Sprintf("%.2f / %.2f", t.EntryPrice, t.CurrentPrice)),
			row("SL / Target", fmt.Sprintf("%.2f / %.2f", t.StopLoss, t.ProfitTarget)),
			row("P&L", fmt.Sprintf("%s (%.2f%%)", money(t.PnL), t.PnLPercent)),
		}
		b.WriteString(panelStyle.Render(strings.Join(trade, "\n")))
		b.WriteString("\n")
	}

	if n := len(snap.Events); n > 0 {
		start := max(0, n-5)
		events := make([]string, 0, n-start)
		for _, e := range snap.Events[start:] {
			events = append(events, mutedStyle.Render(e.Time)+"  "+e.Message)
		}
		b.WriteString(panelStyle.Render(strings.Join(events, "\n")))
	}
	return b.String()
}
