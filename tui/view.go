package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeanhaley/personal-chat-bot/chat"
)

const (
	title        = "💬 Personal Chat Bot"
	welcomeTitle = "👋 Welcome!"
	welcomeBody  = "I'm your Chat Bot. Ask me anything within my domain."
	thinkingText = "thinking..."
)

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "\n  Starting..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.footerView(),
	)
}

func (m Model) headerView() string {
	left := m.styles.title.Render(title)
	session := m.styles.session.Render("  " + string(m.ctrl.SessionID()))
	toggle := m.styles.toggle.Render(toggleLabel(m.theme))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(session) - lipgloss.Width(toggle) - 2
	if gap < 1 {
		gap = 1
	}
	filler := m.styles.session.Render(strings.Repeat(" ", gap))

	return m.styles.header.Width(m.width).Render(left + session + filler + toggle)
}

func (m Model) footerView() string {
	status := m.styles.help.Render("enter send • ctrl+t theme • ctrl+l clear • esc quit")
	if m.status != "" {
		status = m.styles.status.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		m.styles.input.Width(m.width).Render(m.input.View()),
		status,
	)
}

// renderMessages lays out the whole log for the viewport
func (m *Model) renderMessages() string {
	messages := m.ctrl.Messages()
	bubbleWidth := max(m.width*3/4, 20)

	var b strings.Builder
	if len(messages) == 0 {
		welcome := lipgloss.JoinVertical(lipgloss.Center,
			m.styles.label.Render(welcomeTitle),
			"",
			welcomeBody,
		)
		b.WriteString(lipgloss.Place(max(m.width, 1), max(m.viewport.Height-1, 1),
			lipgloss.Center, lipgloss.Center, m.styles.welcome.Render(welcome)))
	}

	for _, msg := range messages {
		b.WriteString(m.renderMessage(msg, bubbleWidth))
		b.WriteString("\n\n")
	}

	if m.ctrl.Waiting() {
		b.WriteString(m.spinner.View() + " " + m.styles.thinking.Render(thinkingText))
	}

	return b.String()
}

func (m *Model) renderMessage(msg chat.Message, width int) string {
	if msg.Role == chat.RoleUser {
		bubble := m.styles.user.MaxWidth(width).Render(wrap(msg.Content, width-2))
		return lipgloss.PlaceHorizontal(max(m.width, lipgloss.Width(bubble)), lipgloss.Right, bubble)
	}

	content := msg.Content
	if m.markdown && content != "" && !m.ctrl.IsRevealing(msg.ID) {
		return m.markdownFor(msg)
	}
	return m.styles.bot.MaxWidth(width).Render(wrap(content, width-2))
}

// wrap breaks lines longer than width on spaces
func wrap(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
