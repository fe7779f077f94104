package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// renderModalFrame renders a scrollable viewport modal with a title and a
// status line, centered in the terminal.
func renderModalFrame(vp *viewport.Model, title, content string, width, height int) string {
	modalWidth := width - 8   // 4 chars margin on each side
	modalHeight := height - 6 // 3 lines margin top and bottom

	contentWidth := max(modalWidth-4, 10)
	contentHeight := max(modalHeight-4, 3)

	vp.Width = contentWidth
	vp.Height = contentHeight
	vp.SetContent(wrapToWidth(content, contentWidth-2))

	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(vp.View())

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render(title)

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, renderModalStatusBar())

	finalModal := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, finalModal)
}

func renderModalStatusBar() string {
	statusItems := []string{"up/down/Wheel: Scroll", "PgUp/PgDn: Page", "ESC: Close"}
	return helpStyle.Render(strings.Join(statusItems, " | "))
}

// scrollViewport applies the shared modal scroll keys. It reports whether
// the modal should close.
func scrollViewport(vp *viewport.Model, msg tea.Msg, closeKeys ...string) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		k := msg.String()
		for _, c := range closeKeys {
			if k == c {
				return true, nil
			}
		}
		switch k {
		case "up", "k":
			vp.ScrollUp(1)
			return false, nil
		case "down", "j":
			vp.ScrollDown(1)
			return false, nil
		case "pgup":
			vp.HalfPageUp()
			return false, nil
		case "pgdown":
			vp.HalfPageDown()
			return false, nil
		case "home":
			vp.GotoTop()
			return false, nil
		case "end":
			vp.GotoBottom()
			return false, nil
		}
	}
	var cmd tea.Cmd
	*vp, cmd = vp.Update(msg)
	return false, cmd
}

// wrapToWidth hard-wraps every line of s to at most width cells.
func wrapToWidth(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
