package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5C542")).Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#89B4FA")).
			Padding(0, 2)
	tabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6ADC8")).Padding(0, 2)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))

	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#45475A")).Padding(0, 1)
)

func pnlStyle(v float64) lipgloss.Style {
	if v < 0 {
		return lossStyle
	}
	return gainStyle
}
