package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/debugconsole/internal/model"
)

const (
	chartHeight = 6
	legendWidth = 22
)

// SeverityChart draws the running per-severity counts as a bar chart with a
// legend that also shows each bucket's visibility.
type SeverityChart struct {
	data  []model.SeverityCount
	total int
}

// SetData replaces the chart data.
func (c *SeverityChart) SetData(counts []model.SeverityCount, total int) {
	c.data = append(c.data[:0], counts...)
	c.total = total
}

// Height is the number of lines Render produces, borders included.
func (c *SeverityChart) Height() int { return chartHeight + 3 }

// Render draws the chart inside a bordered section of the given width.
func (c *SeverityChart) Render(width int) string {
	inner := max(width-2, 20)
	title := chartTitleStyle.Render("Severities")

	var body string
	if len(c.data) == 0 {
		body = helpStyle.Render("No data available")
	} else {
		body = c.renderContent(inner)
	}
	return sectionStyle.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func (c *SeverityChart) renderContent(width int) string {
	chartWidth := max(width-legendWidth-2, 9)

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(2),
		barchart.WithBarWidth(max((chartWidth-4)/3, 1)),
		barchart.WithNoAxis(),
	)
	for _, sc := range c.data {
		color := severityColor(sc.Name)
		style := lipgloss.NewStyle().Foreground(color).Background(color)
		if !sc.Visible {
			style = lipgloss.NewStyle().Foreground(ColorGray).Background(ColorGray)
		}
		bc.Push(barchart.BarData{
			Label:  sc.Name,
			Values: []barchart.BarValue{{Name: sc.Name, Value: float64(sc.Count), Style: style}},
		})
	}
	bc.Draw()

	chartLines := strings.Split(bc.View(), "\n")
	legendLines := c.legend()
	for len(chartLines) < chartHeight {
		chartLines = append(chartLines, "")
	}

	var out []string
	for i := 0; i < chartHeight; i++ {
		line := chartLines[i]
		if w := lipgloss.Width(line); w < chartWidth {
			line += strings.Repeat(" ", chartWidth-w)
		}
		if i < len(legendLines) {
			line += "  " + legendLines[i]
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func (c *SeverityChart) legend() []string {
	var lines []string
	for _, sc := range c.data {
		mark := "●"
		if !sc.Visible {
			mark = "○"
		}
		style := lipgloss.NewStyle().Foreground(severityColor(sc.Name))
		lines = append(lines, style.Render(fmt.Sprintf("%s %-8s%8d", mark, sc.Name, sc.Count)))
	}
	lines = append(lines, helpStyle.Render(strings.Repeat("─", legendWidth-2)))
	lines = append(lines, fmt.Sprintf("  %-8s%8d", "Total", c.total))
	return lines
}
