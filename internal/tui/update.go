package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/debugconsole/internal/console"
	"github.com/tinytelemetry/debugconsole/internal/severity"
)

// TickMsg triggers a periodic refresh.
type TickMsg time.Time

type snapshotMsg struct {
	snap console.Snapshot
	err  error
}

type actionDoneMsg struct {
	err error
}

func (m *ConsoleModel) Init() tea.Cmd {
	return tea.Batch(m.fetchSnapshot(), m.tick(), m.waitForDetails())
}

func (m *ConsoleModel) tick() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m *ConsoleModel) waitForDetails() tea.Cmd {
	ch := m.details
	return func() tea.Msg {
		select {
		case d := <-ch:
			return d
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *ConsoleModel) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, m.callTimeout)
}

func (m *ConsoleModel) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		snap, err := m.client.Snapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

// apply runs fn on the hub and then refreshes, even while paused, so the
// user sees the effect of their own action.
func (m *ConsoleModel) apply(fn func(*console.Store)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		if err := m.client.Do(ctx, fn); err != nil {
			return actionDoneMsg{err: err}
		}
		snap, err := m.client.Snapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *ConsoleModel) requestDetails(id uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.callCtx()
		defer cancel()
		return actionDoneMsg{err: m.client.RequestDetails(ctx, id)}
	}
}

// Update handles messages.
func (m *ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		return m, nil

	case TickMsg:
		if m.paused {
			return m, m.tick()
		}
		return m, tea.Batch(m.fetchSnapshot(), m.tick())

	case snapshotMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.applySnapshot(msg.snap)
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil

	case detailsMsg:
		m.PushModal(NewDetailsModal(msg.label, msg.callstack))
		return m, m.waitForDetails()

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		if modal := m.TopModal(); modal != nil {
			pop, cmd := modal.Update(msg)
			if pop {
				m.PopModal()
			}
			return m, cmd
		}
		step := 1
		if m.reverseScroll {
			step = -1
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.moveCursor(-step)
		case tea.MouseButtonWheelDown:
			m.moveCursor(step)
		}
		return m, nil
	}
	return m, nil
}

func (m *ConsoleModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	if modal := m.TopModal(); modal != nil {
		pop, cmd := modal.Update(msg)
		if pop {
			m.PopModal()
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.PushModal(NewHelpModal(m.keys))
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if !m.paused {
			return m, m.fetchSnapshot()
		}

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
		m.follow = false
		m.clampScroll()
	case key.Matches(msg, m.keys.End):
		m.cursor = max(len(m.rows)-1, 0)
		m.follow = true
		m.clampScroll()

	case key.Matches(msg, m.keys.Enter):
		if row, ok := m.selected(); ok {
			return m, m.requestDetails(row.ID)
		}

	case key.Matches(msg, m.keys.ToggleCollapse):
		return m, m.apply(func(s *console.Store) { s.ToggleCollapseMode() })
	case key.Matches(msg, m.keys.ToggleErrors):
		return m, m.apply(toggleSeverity(severity.NameError))
	case key.Matches(msg, m.keys.ToggleWarnings):
		return m, m.apply(toggleSeverity(severity.NameWarning))
	case key.Matches(msg, m.keys.ToggleInfo):
		return m, m.apply(toggleSeverity(severity.NameInfo))
	case key.Matches(msg, m.keys.Clear):
		m.cursor, m.offset, m.follow = 0, 0, true
		return m, m.apply(func(s *console.Store) { s.Clear() })
	}
	return m, nil
}

func toggleSeverity(name string) func(*console.Store) {
	return func(s *console.Store) {
		if c, ok := s.Registry().Lookup(name); ok {
			s.SetSeverityVisible(name, !c.Visible())
		}
	}
}

func (m *ConsoleModel) applySnapshot(snap console.Snapshot) {
	var selectedID uint64
	row, hadSelection := m.selected()
	if hadSelection {
		selectedID = row.ID
	}

	m.snap = snap
	m.loaded = true
	m.rows = snap.VisibleRows()
	m.chart.SetData(snap.Severities, snap.Total)
	m.lastErr = ""

	switch {
	case m.follow:
		m.cursor = max(len(m.rows)-1, 0)
	case hadSelection:
		// Keep the same entry selected when rows shift underneath.
		m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
		for i, r := range m.rows {
			if r.ID == selectedID {
				m.cursor = i
				break
			}
		}
	}
	m.clampScroll()
}

func (m *ConsoleModel) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.rows)-1)
	m.follow = m.cursor == len(m.rows)-1
	m.clampScroll()
}

func (m *ConsoleModel) clampScroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = min(m.offset, max(len(m.rows)-h, 0))
	m.offset = max(m.offset, 0)
}

func (m *ConsoleModel) setError(err error) {
	m.lastErr = err.Error()
	m.lastErrAt = time.Now()
}
