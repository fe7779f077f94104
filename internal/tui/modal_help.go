package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// HelpModal lists the key bindings.
type HelpModal struct {
	keys     KeyMap
	viewport viewport.Model
}

func NewHelpModal(keys KeyMap) *HelpModal {
	return &HelpModal{keys: keys, viewport: viewport.New(80, 20)}
}

func (h *HelpModal) ID() string { return "help" }

func (h *HelpModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	return scrollViewport(&h.viewport, msg, "?", "h", "escape", "esc")
}

func (h *HelpModal) View(width, height int) string {
	return renderModalFrame(&h.viewport, "Help", h.content(), width, height)
}

func (h *HelpModal) content() string {
	var b strings.Builder
	b.WriteString("Debug Console\n\n")
	b.WriteString("Identical messages (same text and callstack) collapse into one row\n")
	b.WriteString("with a counter. Flattened mode shows one row per log call.\n\n")
	for _, binding := range h.keys.helpBindings() {
		help := binding.Help()
		fmt.Fprintf(&b, "  %-12s %s\n", help.Key, help.Desc)
	}
	return b.String()
}
