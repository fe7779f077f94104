package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	ColorNavy   = lipgloss.Color("#1B2B4B")
	ColorBlue   = lipgloss.Color("39")
	ColorRed    = lipgloss.Color("196")
	ColorOrange = lipgloss.Color("208")
	ColorGray   = lipgloss.Color("244")
	ColorWhite  = lipgloss.Color("255")
	ColorGreen  = lipgloss.Color("42")
)

var (
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorGray)

	activeSectionStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(ColorBlue)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("237")).
				Bold(true)

	countPillStyle = lipgloss.NewStyle().
			Foreground(ColorNavy).
			Background(ColorGray).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)
)

// severityColor maps a severity bucket name to its accent color.
func severityColor(name string) lipgloss.Color {
	switch name {
	case "Error":
		return ColorRed
	case "Warning":
		return ColorOrange
	case "Info":
		return ColorBlue
	default:
		return ColorWhite
	}
}

// severityPill renders the short severity tag shown on every row.
func severityPill(name string) string {
	short := "INF"
	switch name {
	case "Error":
		short = "ERR"
	case "Warning":
		short = "WRN"
	}
	return lipgloss.NewStyle().
		Foreground(ColorNavy).
		Background(severityColor(name)).
		Bold(true).
		Padding(0, 1).
		Render(short)
}
