// Package tui is the terminal shell around the chat and document
// controllers: a header with the connection indicator, a document sidebar, the
// chat transcript and an input box.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/ragchat-go/internal/chat"
	"github.com/comigor/ragchat-go/internal/documents"
	"github.com/comigor/ragchat-go/internal/logger"
)

const (
	headerHeight = 2
	inputHeight  = 3
	footerHeight = 1
	sidebarWidth = 36
)

// ChatController is satisfied by *chat.Controller.
type ChatController interface {
	Start(ctx context.Context) chat.Connection
	Probe(ctx context.Context) chat.Connection
	Send(ctx context.Context, text string) bool
	Clear()
	Snapshot() chat.Snapshot
}

// DocumentController is satisfied by *documents.Controller.
type DocumentController interface {
	Refresh(ctx context.Context) bool
	Upload(ctx context.Context, path string) bool
	Delete(ctx context.Context, id string) bool
	DismissError()
	Snapshot() documents.Snapshot
}

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

type mode int

const (
	modeNormal mode = iota
	modeUpload
	modeConfirmDelete
)

// connMsg carries the result of a connectivity probe.
type connMsg struct{ conn chat.Connection }

// sendDoneMsg is returned once Send has finished. sent is false when the
// controller refused the message.
type sendDoneMsg struct{ sent bool }

// docsDoneMsg is returned once a document operation has finished.
type docsDoneMsg struct {
	op     string
	issued bool
}

type Option func(*Model)

// WithTheme sets the initial theme. The default follows the terminal
// background.
func WithTheme(t Theme) Option {
	return func(m *Model) { m.theme = t }
}

// WithClock overrides time.Now for relative upload times.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// Model is the Bubble Tea model of the whole screen.
type Model struct {
	ctx  context.Context
	chat ChatController
	docs DocumentController
	now  func() time.Time

	theme    Theme
	styles   Styles
	renderer *glamour.TermRenderer
	wrap     int

	viewport viewport.Model
	input    textarea.Model
	path     textinput.Model
	spinner  spinner.Model

	focus    focus
	mode     mode
	selected int
	pending  string
	status   string
	sending  bool

	chatSnap chat.Snapshot
	docSnap  documents.Snapshot

	width  int
	height int
	ready  bool
}

// New builds the model. Controller calls made by the returned model use ctx.
func New(ctx context.Context, c ChatController, d DocumentController, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "Upload: "
	ti.Placeholder = "path/to/document.pdf"

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		chat:     c,
		docs:     d,
		now:      time.Now,
		theme:    ThemeLight,
		input:    ta,
		path:     ti,
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}
	if lipgloss.HasDarkBackground() {
		m.theme = ThemeDark
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.styles = NewStyles(m.theme)
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textarea.Blink, m.startCmd(), m.refreshCmd())
}

func (m Model) startCmd() tea.Cmd {
	ctx, c := m.ctx, m.chat
	return func() tea.Msg { return connMsg{conn: c.Start(ctx)} }
}

func (m Model) probeCmd() tea.Cmd {
	ctx, c := m.ctx, m.chat
	return func() tea.Msg { return connMsg{conn: c.Probe(ctx)} }
}

func (m Model) sendCmd(text string) tea.Cmd {
	ctx, c := m.ctx, m.chat
	return func() tea.Msg { return sendDoneMsg{sent: c.Send(ctx, text)} }
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, d := m.ctx, m.docs
	return func() tea.Msg { return docsDoneMsg{op: "refresh", issued: d.Refresh(ctx)} }
}

func (m Model) uploadCmd(path string) tea.Cmd {
	ctx, d := m.ctx, m.docs
	return func() tea.Msg { return docsDoneMsg{op: "upload", issued: d.Upload(ctx, path)} }
}

func (m Model) deleteCmd(id string) tea.Cmd {
	ctx, d := m.ctx, m.docs
	return func() tea.Msg { return docsDoneMsg{op: "delete", issued: d.Delete(ctx, id)} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.sync()
		m.refreshViewport(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connMsg:
		m.sync()
		if msg.conn == chat.ConnDisconnected {
			m.status = "Backend unreachable. Press ctrl+r to retry."
		} else if msg.conn == chat.ConnConnected {
			m.status = ""
		}
		return m, nil

	case sendDoneMsg:
		m.sending = false
		if !msg.sent {
			m.status = "Message not sent."
		}
		m.sync()
		m.refreshViewport(true)
		return m, nil

	case docsDoneMsg:
		m.sync()
		if !msg.issued {
			m.status = "Documents are busy, try again in a moment."
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.sending || m.docSnap.Busy() {
			m.sync()
			m.refreshViewport(false)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case modeUpload:
		return m.handleUploadKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	}

	switch msg.String() {
	case "ctrl+t":
		m.theme = m.theme.toggle()
		m.styles = NewStyles(m.theme)
		m.resetRenderer()
		m.refreshViewport(false)
		return m, nil
	case "ctrl+r":
		m.status = ""
		return m, tea.Batch(m.probeCmd(), m.refreshCmd())
	case "ctrl+l":
		m.chat.Clear()
		m.sending = false
		m.status = ""
		m.sync()
		m.refreshViewport(true)
		return m, nil
	case "ctrl+u":
		m.mode = modeUpload
		m.path.Reset()
		m.input.Blur()
		return m, m.path.Focus()
	case "esc":
		if m.docSnap.Error != "" {
			m.docs.DismissError()
			m.sync()
		}
		m.status = ""
		return m, nil
	case "tab":
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
			return m, nil
		}
		m.focus = focusInput
		return m, m.input.Focus()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	if msg.String() == "enter" {
		return m.send()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" || m.sending {
		return m, nil
	}
	if !m.chatSnap.CanSend() {
		if m.chatSnap.Connection != chat.ConnConnected {
			m.status = "Backend disconnected. Press ctrl+r to retry."
		}
		return m, nil
	}
	m.input.Reset()
	m.sending = true
	m.status = ""
	return m, m.sendCmd(text)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.docSnap.Documents)
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < n-1 {
			m.selected++
		}
	case "d", "delete":
		if n == 0 {
			return m, nil
		}
		m.pending = m.docSnap.Documents[m.selected].ID
		m.mode = modeConfirmDelete
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.pending
		m.pending = ""
		m.mode = modeNormal
		return m, m.deleteCmd(id)
	case "n", "N", "esc":
		m.pending = ""
		m.mode = modeNormal
	}
	return m, nil
}

func (m Model) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		path := strings.TrimSpace(m.path.Value())
		m.mode = modeNormal
		m.path.Blur()
		focusCmd := m.focusInput()
		if path == "" {
			return m, focusCmd
		}
		return m, tea.Batch(m.uploadCmd(path), focusCmd)
	case "esc":
		m.mode = modeNormal
		m.path.Blur()
		return m, m.focusInput()
	}
	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m *Model) focusInput() tea.Cmd {
	m.focus = focusInput
	return m.input.Focus()
}

// sync re-reads both controller snapshots.
func (m *Model) sync() {
	m.chatSnap = m.chat.Snapshot()
	m.docSnap = m.docs.Snapshot()
	if n := len(m.docSnap.Documents); m.selected >= n {
		m.selected = max(n-1, 0)
	}
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	side := min(sidebarWidth, w/3)
	chatW := max(w-side, 10)
	vpH := max(h-headerHeight-(inputHeight+2)-footerHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(chatW, vpH)
		m.ready = true
	} else {
		m.viewport.Width = chatW
		m.viewport.Height = vpH
	}
	m.input.SetWidth(max(chatW-2, 1))
	m.path.Width = max(w-12, 10)
	m.resetRenderer()
}

// rendererWidth leaves room for the chat pane's border and padding.
func (m *Model) rendererWidth() int {
	return max(m.viewport.Width-4, 20)
}

func (m *Model) resetRenderer() {
	m.wrap = m.rendererWidth()
	m.renderer = newRenderer(m.theme, m.wrap)
}

func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderHistory(m.viewport.Width))
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

func newRenderer(t Theme, width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(string(t)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logger.L.Warn("markdown renderer unavailable", "error", err)
		return nil
	}
	return r
}
