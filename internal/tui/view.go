package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/debugconsole/internal/console"
)

// View renders the console page.
func (m *ConsoleModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if modal := m.TopModal(); modal != nil {
		return modal.View(m.width, m.height)
	}
	if !m.loaded {
		return renderLoadingPlaceholder(m.width, m.height)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.chart.Render(m.width),
		m.renderList(),
		m.renderStatusLine(),
	)
}

func (m *ConsoleModel) renderList() string {
	inner := max(m.width-2, 10)
	h := m.listHeight()

	title := chartTitleStyle.Render(fmt.Sprintf("Console (%s) %d/%d", m.snap.ModeName, len(m.rows), m.snap.LiveCount))

	var lines []string
	if len(m.rows) == 0 {
		lines = append(lines, helpStyle.Render("No entries"))
	}
	end := min(m.offset+h, len(m.rows))
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(m.rows[i], inner, i == m.cursor))
	}
	for len(lines) < h {
		lines = append(lines, "")
	}

	return sectionStyle.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")))
}

// renderRow draws "[SEV] [count] first line of label".
func (m *ConsoleModel) renderRow(r console.RowView, width int, selected bool) string {
	pill := severityPill(r.Severity)
	prefix := pill + " "
	if m.snap.Mode == console.Collapsed {
		prefix += countPillStyle.Render(fmt.Sprintf("%d", r.Count)) + " "
	}

	label := firstLine(r.Label)
	if r.Callstack != "" {
		label += " " + helpStyle.Render("↳")
	}
	avail := width - lipgloss.Width(prefix)
	label = truncate(label, avail)

	line := prefix + label
	if selected {
		return selectedRowStyle.Width(width).Render(line)
	}
	return line
}

func (m *ConsoleModel) renderStatusLine() string {
	left := "?: Help • c: Collapse • e/w/i: Severities • x: Clear • Enter: Details • q: Quit"
	if m.width < 80 {
		left = "? • c • e/w/i • x • q"
	}

	var right []string
	if m.lastErr != "" && time.Since(m.lastErrAt) < 30*time.Second {
		right = append(right, lipgloss.NewStyle().Background(ColorNavy).Foreground(ColorRed).Render("hub error"))
	}
	if m.snap.Dropped > 0 {
		right = append(right, fmt.Sprintf("dropped %d", m.snap.Dropped))
	}
	if m.paused {
		right = append(right, "⏸ Paused")
	} else {
		right = append(right, fmt.Sprintf("Update: %s", m.updateInterval))
	}

	rightText := strings.Join(right, " │ ")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(rightText)-2, 1)
	return statusBarStyle.Width(m.width).Render(" " + left + strings.Repeat(" ", gap) + rightText + " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate shortens s to at most n runes, adding an ellipsis when cut.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
