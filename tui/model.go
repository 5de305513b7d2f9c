// Package tui is the terminal front end of a chat session.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeanhaley/personal-chat-bot/chat"
)

const (
	headerHeight = 1
	footerHeight = 3
)

// EventMsg carries a controller event into the program
type EventMsg struct {
	chat.Event
}

// submitDoneMsg reports the end of a Submit call
type submitDoneMsg struct {
	err error
}

// Options configures the terminal UI
type Options struct {
	// Markdown renders completed bot replies with glamour
	Markdown bool
	// AltScreen runs the program full screen
	AltScreen bool
	Logger    *zap.Logger
}

// Model is the bubbletea model of one chat session. Controller calls that
// emit events are made from commands, never from Update: events are
// delivered with Program.Send, which blocks until Update returns.
type Model struct {
	ctx    context.Context
	ctrl   *chat.Controller
	logger *zap.Logger

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	theme    chat.Theme
	styles   styles
	markdown bool
	renderer *glamour.TermRenderer
	rendered map[chat.MessageID]renderedMessage

	width  int
	height int
	ready  bool
	status string
}

type renderedMessage struct {
	source string
	output string
}

// New creates the model for ctrl
func New(ctx context.Context, ctrl *chat.Controller, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	in := textinput.New()
	in.Placeholder = "Ask something..."
	in.Prompt = "› "
	in.CharLimit = 0
	in.Width = 60
	in.SetValue(ctrl.PendingInput())
	in.Focus()

	s := spinner.New(spinner.WithSpinner(spinner.Dot))

	theme := ctrl.Theme()
	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		logger:   logger,
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  s,
		theme:    theme,
		styles:   newStyles(theme),
		markdown: opts.Markdown,
		rendered: make(map[chat.MessageID]renderedMessage),
	}
	m.spinner.Style = m.styles.thinking
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		return m.handleEvent(msg.Event)

	case submitDoneMsg:
		switch {
		case errors.Is(msg.err, chat.ErrBusy):
			m.status = "Still waiting for the previous reply"
		case msg.err != nil:
			m.status = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.ctrl.Waiting() {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "ctrl+t":
		return m, m.toggleTheme()

	case "ctrl+l":
		return m, m.clear()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "enter":
		if m.ctrl.Waiting() {
			return m, nil
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		m.status = ""
		return m, m.submit(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetPendingInput(m.input.Value())
	return m, cmd
}

func (m Model) handleEvent(e chat.Event) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch e.Kind {
	case chat.EventWaitingChanged:
		if e.Waiting {
			m.input.Blur()
		} else {
			cmd = m.input.Focus()
		}
	case chat.EventThemeChanged:
		m.setTheme(e.Theme)
	case chat.EventCleared:
		m.rendered = make(map[chat.MessageID]renderedMessage)
	}
	m.refresh()
	return m, cmd
}

func (m Model) submit(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: ctrl.Submit(ctx, text)}
	}
}

func (m Model) toggleTheme() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.ToggleTheme()
		return nil
	}
}

func (m Model) clear() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return submitDoneMsg{err: ctrl.Clear()}
	}
}

func (m *Model) setTheme(theme chat.Theme) {
	if theme == m.theme {
		return
	}
	m.theme = theme
	m.styles = newStyles(theme)
	m.spinner.Style = m.styles.thinking
	m.renderer = nil
	m.rendered = make(map[chat.MessageID]renderedMessage)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-headerHeight-footerHeight, 1)
	m.input.Width = max(width-4, 10)
	m.renderer = nil
	m.rendered = make(map[chat.MessageID]renderedMessage)
	m.ready = true
}

// refresh re-renders the message list and scrolls to the newest message
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// markdownFor renders completed bot content, falling back to plain text
func (m *Model) markdownFor(msg chat.Message) string {
	if cached, ok := m.rendered[msg.ID]; ok && cached.source == msg.Content {
		return cached.output
	}

	if m.renderer == nil {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(string(m.theme)),
			glamour.WithWordWrap(max(m.width-6, 20)),
		)
		if err != nil {
			m.logger.Warn("Failed to create markdown renderer", zap.Error(err))
			m.markdown = false
			return msg.Content
		}
		m.renderer = renderer
	}

	out, err := m.renderer.Render(msg.Content)
	if err != nil {
		m.logger.Debug("Failed to render markdown", zap.String("message_id", string(msg.ID)), zap.Error(err))
		return msg.Content
	}
	out = strings.Trim(out, "\n")
	m.rendered[msg.ID] = renderedMessage{source: msg.Content, output: out}
	return out
}
