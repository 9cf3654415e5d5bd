package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/service"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	refreshInterval = 15 * time.Second
	loadTimeout     = 10 * time.Second
)

type PortfolioSource interface {
	Snapshot(ctx context.Context) (service.PortfolioView, []domain.TradeRecord, error)
}

type AnalysisSource interface {
	Get(ctx context.Context, symbol string) (domain.AssetAnalysis, bool, error)
}

type Services struct {
	Portfolio PortfolioSource
	Analyses  AnalysisSource
	Assets    []string
	Username  string
}

type tab int

const (
	tabPositions tab = iota
	tabTrades
	tabAnalysis
)

var tabNames = []string{"Positions", "Trades", "Analysis"}

type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Next:    key.NewBinding(key.WithKeys("tab", "right", "l")),
	Prev:    key.NewBinding(key.WithKeys("shift+tab", "left", "h")),
	Refresh: key.NewBinding(key.WithKeys("r")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

type snapshotMsg struct {
	view     service.PortfolioView
	trades   []domain.TradeRecord
	analyses []domain.AssetAnalysis
	at       time.Time
	err      error
}

type tickMsg time.Time

// AppModel is the read-only dashboard served over SSH.
type AppModel struct {
	svc    Services
	active tab
	tables [3]table.Model

	view     service.PortfolioView
	analyses []domain.AssetAnalysis
	loadedAt time.Time
	err      error

	width  int
	height int
}

func NewAppModel(svc Services) *AppModel {
	m := &AppModel{svc: svc, width: 100, height: 30}
	m.tables[tabPositions] = newTable([]table.Column{
		{Title: "Symbol", Width: 8},
		{Title: "Amount", Width: 14},
		{Title: "Entry", Width: 12},
		{Title: "Price", Width: 12},
		{Title: "PnL", Width: 12},
		{Title: "PnL %", Width: 8},
		{Title: "Stop", Width: 12},
		{Title: "Target", Width: 12},
	})
	m.tables[tabTrades] = newTable([]table.Column{
		{Title: "#", Width: 5},
		{Title: "Time", Width: 17},
		{Title: "Symbol", Width: 8},
		{Title: "Action", Width: 12},
		{Title: "Amount", Width: 14},
		{Title: "Price", Width: 12},
		{Title: "Value", Width: 12},
	})
	m.tables[tabAnalysis] = newTable([]table.Column{
		{Title: "Symbol", Width: 8},
		{Title: "Close", Width: 12},
		{Title: "24h %", Width: 8},
		{Title: "RSI", Width: 6},
		{Title: "Technical", Width: 12},
		{Title: "Sentiment", Width: 10},
		{Title: "Combined", Width: 12},
		{Title: "Conf", Width: 5},
		{Title: "Action", Width: 12},
	})
	m.tables[tabPositions].Focus()
	return m
}

func newTable(cols []table.Column) table.Model {
	t := table.New(table.WithColumns(cols), table.WithHeight(10))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#1E1E2E")).Background(lipgloss.Color("#F5C542"))
	t.SetStyles(styles)
	return t
}

// SetSize resizes the tables to fit a terminal of w by h cells.
func (m *AppModel) SetSize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	m.width, m.height = w, h
	for i := range m.tables {
		m.tables[i].SetWidth(w - 4)
		m.tables[i].SetHeight(max(3, h-9))
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *AppModel) load() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		msg := snapshotMsg{at: time.Now().UTC()}
		if svc.Portfolio != nil {
			msg.view, msg.trades, msg.err = svc.Portfolio.Snapshot(ctx)
		}
		if svc.Analyses != nil {
			for _, symbol := range svc.Assets {
				a, ok, err := svc.Analyses.Get(ctx, symbol)
				if err != nil {
					if msg.err == nil {
						msg.err = fmt.Errorf("analysis %s: %w", symbol, err)
					}
					continue
				}
				if ok {
					msg.analyses = append(msg.analyses, a)
				}
			}
		}
		return msg
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.switchTab((m.active + 1) % tab(len(tabNames)))
			return m, nil
		case key.Matches(msg, keys.Prev):
			m.switchTab((m.active + tab(len(tabNames)) - 1) % tab(len(tabNames)))
			return m, nil
		case key.Matches(msg, keys.Refresh):
			return m, m.load()
		}
	case tickMsg:
		return m, tea.Batch(m.load(), tick())
	case snapshotMsg:
		m.apply(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.tables[m.active], cmd = m.tables[m.active].Update(msg)
	return m, cmd
}

func (m *AppModel) switchTab(t tab) {
	m.tables[m.active].Blur()
	m.active = t
	m.tables[m.active].Focus()
}

func (m *AppModel) apply(msg snapshotMsg) {
	m.err = msg.err
	m.loadedAt = msg.at
	if msg.err != nil && msg.trades == nil && len(msg.view.Positions) == 0 && msg.analyses == nil {
		return
	}
	m.view = msg.view
	m.analyses = msg.analyses
	m.tables[tabPositions].SetRows(positionRows(msg.view.Positions))
	m.tables[tabTrades].SetRows(tradeRows(msg.trades))
	m.tables[tabAnalysis].SetRows(analysisRows(msg.analyses))
}

func (m *AppModel) View() string {
	var b strings.Builder

	header := titleStyle.Render("crypto-trading-agent")
	if m.svc.Username != "" {
		header += statusStyle.Render(" " + m.svc.Username)
	}
	b.WriteString(header + "\n")

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if tab(i) == m.active {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n")

	b.WriteString(panelStyle.Render(m.tables[m.active].View()) + "\n")
	b.WriteString(m.summaryLine() + "\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}
	status := "loading..."
	if !m.loadedAt.IsZero() {
		status = "updated " + m.loadedAt.Format("15:04:05") + " UTC"
	}
	b.WriteString(statusStyle.Render(status + "  tab/shift+tab switch  r refresh  q quit"))
	return b.String()
}

func (m *AppModel) summaryLine() string {
	v := m.view
	pnl := v.Equity - v.StartingCash
	return fmt.Sprintf("Cash $%.2f  Equity $%.2f  ", v.Cash, v.Equity) +
		pnlStyle(pnl).Render(fmt.Sprintf("%+.2f", pnl)) +
		fmt.Sprintf("  Trades %d  Realized ", v.Summary.TotalTrades) +
		pnlStyle(v.Summary.RealizedPnL).Render(fmt.Sprintf("%+.2f", v.Summary.RealizedPnL))
}
