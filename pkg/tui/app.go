package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/run"
)

// --- Tea messages ---

// protocolsMsg carries the catalog listing.
type protocolsMsg struct {
	protocols []protocol.Protocol
	err       error
}

// protocolMsg carries one protocol fetched for the detail screen.
type protocolMsg struct {
	protocol *protocol.Protocol
	err      error
}

// stateMsg carries a controller snapshot. ctrl identifies the controller
// so snapshots from a closed detail view are dropped.
type stateMsg struct {
	ctrl  runner
	state run.State
}

// noticeMsg carries a run notification.
type noticeMsg struct {
	ctrl   runner
	notice run.Notification
}

// --- Screens ---

type screen int

const (
	screenCatalog screen = iota
	screenDetail
)

// Config holds the parameters needed to launch the TUI.
type Config struct {
	Service      client.Service
	Logger       *log.Logger
	TickInterval time.Duration
	Simulate     bool
	// Endpoint is shown in the header.
	Endpoint string
}

// Model is the top-level Bubble Tea model for the TUI.
type Model struct {
	cfg Config

	// Controller observers post here; listen re-arms after every message.
	events   chan tea.Msg
	done     chan struct{}
	stopOnce *sync.Once

	screen  screen
	catalog catalogPanel
	detail  *detailPanel
	opening bool

	notice *run.Notification

	width  int
	height int
}

// NewModel returns the initial model.
func NewModel(cfg Config) Model {
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	return Model{
		cfg:      cfg,
		events:   make(chan tea.Msg, 64),
		done:     make(chan struct{}),
		stopOnce: new(sync.Once),
		catalog:  newCatalogPanel(),
	}
}

// Run starts the TUI and blocks until the operator quits.
func Run(cfg Config) error {
	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init loads the catalog and starts listening for controller events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadProtocols(), m.listen())
}

func (m Model) listen() tea.Cmd {
	events, done := m.events, m.done
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-done:
			return nil
		}
	}
}

// poster returns a function delivering messages to the program until the
// app exits. Controller goroutines call it.
func (m Model) poster() func(tea.Msg) {
	events, done := m.events, m.done
	return func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-done:
		}
	}
}

func (m Model) loadProtocols() tea.Cmd {
	svc := m.cfg.Service
	return func() tea.Msg {
		ps, err := svc.ListProtocols(context.Background())
		return protocolsMsg{protocols: ps, err: err}
	}
}

func (m Model) loadProtocol(id string) tea.Cmd {
	svc := m.cfg.Service
	return func() tea.Msg {
		p, err := svc.GetProtocol(context.Background(), id)
		return protocolMsg{protocol: p, err: err}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.catalog.width = msg.Width
		m.catalog.height = msg.Height
		if m.detail != nil {
			m.detail.SetWidth(msg.Width)
		}

	case tea.KeyMsg:
		return m.handleKey(msg)

	case protocolsMsg:
		if msg.err != nil {
			m.catalog.SetError("Failed to load protocols: " + msg.err.Error())
		} else {
			m.catalog.SetProtocols(msg.protocols)
		}

	case protocolMsg:
		m.opening = false
		if msg.err != nil {
			m.catalog.SetError(msg.err.Error())
			return m, nil
		}
		m.openDetail(*msg.protocol)

	case stateMsg:
		if m.detail != nil && m.detail.ctrl == msg.ctrl {
			m.detail.SetState(msg.state)
		}
		return m, m.listen()

	case noticeMsg:
		if m.detail != nil && m.detail.ctrl == msg.ctrl {
			n := msg.notice
			m.notice = &n
		}
		return m, m.listen()
	}

	return m, nil
}

// openDetail switches to the detail screen with a fresh controller.
func (m *Model) openDetail(p protocol.Protocol) {
	post := m.poster()
	var ctrl *run.Controller
	ctrl = run.New(p.ID, m.cfg.Service,
		run.WithTickInterval(m.cfg.TickInterval),
		run.WithSimulate(m.cfg.Simulate),
		run.WithLogger(m.cfg.Logger),
		run.WithNotifier(run.NotifierFunc(func(n run.Notification) {
			post(noticeMsg{ctrl: ctrl, notice: n})
		})),
	)
	ctrl.OnChange(func(s run.State) {
		post(stateMsg{ctrl: ctrl, state: s})
	})
	m.detail = newDetailPanel(p, ctrl, m.width)
	m.screen = screenDetail
	m.notice = nil
}

// closeDetail leaves the detail screen. Its controller is closed so no
// further progress or results are delivered for it.
func (m *Model) closeDetail() {
	if m.detail != nil {
		m.detail.ctrl.Close()
		m.detail = nil
	}
	m.screen = screenCatalog
	m.notice = nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.detail != nil {
		m.detail.ctrl.Close()
	}
	m.stopOnce.Do(func() { close(m.done) })
	return m, tea.Quit
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if matchKey(msg, keys.ForceQuit) {
		return m.quit()
	}
	m.notice = nil

	if m.screen == screenDetail && m.detail != nil {
		if matchKey(msg, keys.Back) {
			m.closeDetail()
			return m, nil
		}
		return m, m.detail.Update(msg)
	}

	// Search bar active: route all input there.
	if m.catalog.search.IsActive() {
		_, _, cmd := m.catalog.search.Update(msg)
		m.catalog.refilter()
		return m, cmd
	}

	switch {
	case matchKey(msg, keys.Quit):
		return m.quit()
	case matchKey(msg, keys.Back):
		if m.catalog.search.HasQuery() {
			m.catalog.search.Close()
			m.catalog.refilter()
		}
	case matchKey(msg, keys.Up):
		m.catalog.CursorUp()
	case matchKey(msg, keys.Down):
		m.catalog.CursorDown()
	case matchKey(msg, keys.Search):
		return m, m.catalog.search.Open()
	case matchKey(msg, keys.Tag):
		m.catalog.CycleTag()
	case matchKey(msg, keys.Reload):
		m.catalog.loaded = false
		return m, m.loadProtocols()
	case matchKey(msg, keys.Open):
		if p, ok := m.catalog.Selected(); ok && !m.opening {
			m.opening = true
			return m, m.loadProtocol(p.ID)
		}
	}
	return m, nil
}

// View renders the complete TUI.
func (m Model) View() string {
	var body string
	resultsFocused := false
	if m.screen == screenDetail && m.detail != nil {
		body = m.detail.View()
		resultsFocused = m.detail.ResultsFocused()
	} else {
		body = m.catalog.View()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(body)
	if m.notice != nil {
		b.WriteString("\n" + renderNotice(*m.notice))
	}
	b.WriteString("\n" + keyBarStyle.Render(keyBarText(m.screen, m.catalog.search.IsActive(), resultsFocused)))
	return b.String()
}

func renderNotice(n run.Notification) string {
	style := noticeSuccessStyle
	glyph := GlyphPassed
	if n.Kind == run.NotifyFailure {
		style = noticeFailureStyle
		glyph = GlyphFailed
	}
	return style.Render(glyph + " " + lipgloss.NewStyle().Bold(true).Render(n.Title) + "\n" + n.Message)
}

// renderHeader builds the top header line.
func (m Model) renderHeader() string {
	title := headerStyle.Render("labrun")

	var mode string
	if m.detail != nil {
		if m.detail.state.Simulate {
			mode = modeBadgeStyle.Render("SIMULATE")
		} else {
			mode = modeBadgeStyle.Background(colorRed).Render("HARDWARE")
		}
	}

	var status string
	switch {
	case m.opening:
		status = statusRunningStyle.Render("opening...")
	case m.screen == screenCatalog && m.catalog.loaded && m.catalog.err == "":
		status = hintStyle.Render(pluralCount(len(m.catalog.all), "protocol", "protocols"))
	}

	left := title
	if mode != "" {
		left += " " + mode
	}
	if m.cfg.Endpoint != "" {
		left += "  " + valueStyle.Render(m.cfg.Endpoint)
	}

	padding := max(m.width-lipgloss.Width(left)-lipgloss.Width(status)-2, 1)
	return left + strings.Repeat(" ", padding) + status
}

func pluralCount(n int, singular, plural string) string {
	return fmt.Sprintf("%d %s", n, pluralize(n, singular, plural))
}
