package tui

import (
	"fmt"
	"slices"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/service"

	"github.com/charmbracelet/bubbles/table"
)

func positionRows(positions []service.PositionView) []table.Row {
	rows := make([]table.Row, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, table.Row{
			p.Symbol,
			fmt.Sprintf("%.6f", p.Amount),
			money(p.EntryPrice),
			money(p.CurrentPrice),
			fmt.Sprintf("%+.2f", p.UnrealizedPnL),
			fmt.Sprintf("%+.2f", p.UnrealizedPct),
			money(p.StopLossPrice),
			money(p.TakeProfitPrice),
		})
	}
	return rows
}

// tradeRows lists the newest trade first.
func tradeRows(trades []domain.TradeRecord) []table.Row {
	rows := make([]table.Row, 0, len(trades))
	for _, t := range slices.Backward(trades) {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", t.Seq),
			t.Timestamp.UTC().Format("2006-01-02 15:04"),
			t.Symbol,
			string(t.Action),
			fmt.Sprintf("%.6f", t.Amount),
			money(t.Price),
			money(t.Value),
		})
	}
	return rows
}

func analysisRows(analyses []domain.AssetAnalysis) []table.Row {
	rows := make([]table.Row, 0, len(analyses))
	for _, a := range analyses {
		rows = append(rows, table.Row{
			a.Symbol,
			money(a.LastBar.Close),
			optional(a.Change24h, "%+.2f"),
			optional(a.Indicators.RSI, "%.1f"),
			string(a.Technical.Classification),
			string(a.Sentiment.Classification),
			string(a.Combined.Classification),
			fmt.Sprintf("%.0f%%", a.Combined.Confidence*100),
			string(a.Action),
		})
	}
	return rows
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
