package tui

import tea "github.com/charmbracelet/bubbletea"

// Page represents a top-level screen in the TUI.
type Page interface {
	ID() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
	Params any
}

// ConsolePage adapts ConsoleModel to the Page interface.
type ConsolePage struct {
	model *ConsoleModel
}

// NewConsolePage wraps m.
func NewConsolePage(m *ConsoleModel) *ConsolePage {
	return &ConsolePage{model: m}
}

func (p *ConsolePage) ID() string { return "console" }

func (p *ConsolePage) Init() tea.Cmd { return p.model.Init() }

func (p *ConsolePage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	_, cmd := p.model.Update(msg)
	return cmd, nil
}

func (p *ConsolePage) View(_, _ int) string { return p.model.View() }
