package tui

import (
	"context"
	"time"

	"github.com/tinytelemetry/debugconsole/internal/console"
)

// ConsoleClient is the narrow hub contract the console page needs.
type ConsoleClient interface {
	Snapshot(ctx context.Context) (console.Snapshot, error)
	Do(ctx context.Context, fn func(*console.Store)) error
	RequestDetails(ctx context.Context, id uint64) error
}

// detailsMsg carries a details request fired by the hub.
type detailsMsg struct {
	label     string
	callstack string
}

// ConsoleModel holds the console page state. All hub access happens in
// tea.Cmds so Update never blocks.
type ConsoleModel struct {
	client         ConsoleClient
	ctx            context.Context
	keys           KeyMap
	updateInterval time.Duration
	callTimeout    time.Duration
	reverseScroll  bool

	width  int
	height int

	snap     console.Snapshot
	loaded   bool
	rows     []console.RowView
	cursor   int
	offset   int
	follow   bool
	paused   bool
	quitting bool

	lastErr   string
	lastErrAt time.Time

	modalStack []Modal
	chart      SeverityChart
	details    chan detailsMsg
}

// ConsoleConfig holds optional console page settings.
type ConsoleConfig struct {
	UpdateInterval     time.Duration
	CallTimeout        time.Duration
	ReverseScrollWheel bool
}

// NewConsoleModel creates the console page model backed by client. ctx
// bounds every hub call.
func NewConsoleModel(ctx context.Context, client ConsoleClient, conf ...ConsoleConfig) *ConsoleModel {
	cfg := ConsoleConfig{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 500 * time.Millisecond
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}
	return &ConsoleModel{
		client:         client,
		ctx:            ctx,
		keys:           DefaultKeyMap(),
		updateInterval: cfg.UpdateInterval,
		callTimeout:    cfg.CallTimeout,
		reverseScroll:  cfg.ReverseScrollWheel,
		follow:         true,
		details:        make(chan detailsMsg, 1),
	}
}

// DetailsHandler returns the callback to register with the hub's details
// hook. It never blocks; a request arriving while one is pending is dropped.
func (m *ConsoleModel) DetailsHandler() func(label, callstack string) {
	return func(label, callstack string) {
		select {
		case m.details <- detailsMsg{label: label, callstack: callstack}:
		default:
		}
	}
}

// PushModal pushes a modal unless one with the same ID is already on top.
func (m *ConsoleModel) PushModal(modal Modal) {
	if top := m.TopModal(); top != nil && top.ID() == modal.ID() {
		return
	}
	m.modalStack = append(m.modalStack, modal)
}

// PopModal removes the topmost modal.
func (m *ConsoleModel) PopModal() {
	if len(m.modalStack) > 0 {
		m.modalStack = m.modalStack[:len(m.modalStack)-1]
	}
}

// TopModal returns the topmost modal or nil.
func (m *ConsoleModel) TopModal() Modal {
	if len(m.modalStack) == 0 {
		return nil
	}
	return m.modalStack[len(m.modalStack)-1]
}

// HasModal reports whether any modal is open.
func (m *ConsoleModel) HasModal() bool { return len(m.modalStack) > 0 }

// Paused reports whether live refresh is suspended.
func (m *ConsoleModel) Paused() bool { return m.paused }

// Rows returns the rows currently on screen.
func (m *ConsoleModel) Rows() []console.RowView { return m.rows }

// Cursor returns the selected row index.
func (m *ConsoleModel) Cursor() int { return m.cursor }

// Snapshot returns the last snapshot received from the hub.
func (m *ConsoleModel) Snapshot() console.Snapshot { return m.snap }

func (m *ConsoleModel) selected() (console.RowView, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return console.RowView{}, false
	}
	return m.rows[m.cursor], true
}

// listHeight is the number of rows the list section can show.
func (m *ConsoleModel) listHeight() int {
	// chart + list borders/title + status line
	h := m.height - m.chart.Height() - 4
	return max(h, 1)
}
