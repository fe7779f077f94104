package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DetailsModal shows the full label and callstack of one entry.
type DetailsModal struct {
	label     string
	callstack string
	viewport  viewport.Model
}

// NewDetailsModal creates a details modal for the given pair.
func NewDetailsModal(label, callstack string) *DetailsModal {
	return &DetailsModal{
		label:     label,
		callstack: callstack,
		viewport:  viewport.New(80, 20),
	}
}

func (d *DetailsModal) ID() string { return "details" }

func (d *DetailsModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	return scrollViewport(&d.viewport, msg, "escape", "esc", "enter", "q")
}

func (d *DetailsModal) View(width, height int) string {
	return renderModalFrame(&d.viewport, "Entry Details", d.content(), width, height)
}

func (d *DetailsModal) content() string {
	heading := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)

	var b strings.Builder
	b.WriteString(heading.Render("Message"))
	b.WriteString("\n")
	b.WriteString(d.label)
	b.WriteString("\n\n")
	b.WriteString(heading.Render("Callstack"))
	b.WriteString("\n")
	if d.callstack == "" {
		b.WriteString(helpStyle.Render("(none)"))
	} else {
		b.WriteString(d.callstack)
	}
	return b.String()
}
