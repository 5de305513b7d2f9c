package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeanhaley/personal-chat-bot/chat"
)

// palette holds the colors of one theme
type palette struct {
	background lipgloss.Color
	foreground lipgloss.Color
	muted      lipgloss.Color
	accent     lipgloss.Color
	userBubble lipgloss.Color
	botBubble  lipgloss.Color
	bar        lipgloss.Color
}

var palettes = map[chat.Theme]palette{
	chat.ThemeDark: {
		background: lipgloss.Color("233"),
		foreground: lipgloss.Color("255"),
		muted:      lipgloss.Color("242"),
		accent:     lipgloss.Color("39"),
		userBubble: lipgloss.Color("26"),
		botBubble:  lipgloss.Color("237"),
		bar:        lipgloss.Color("235"),
	},
	chat.ThemeLight: {
		background: lipgloss.Color("255"),
		foreground: lipgloss.Color("234"),
		muted:      lipgloss.Color("245"),
		accent:     lipgloss.Color("25"),
		userBubble: lipgloss.Color("33"),
		botBubble:  lipgloss.Color("252"),
		bar:        lipgloss.Color("250"),
	},
}

type styles struct {
	header   lipgloss.Style
	title    lipgloss.Style
	toggle   lipgloss.Style
	session  lipgloss.Style
	user     lipgloss.Style
	bot      lipgloss.Style
	label    lipgloss.Style
	welcome  lipgloss.Style
	thinking lipgloss.Style
	input    lipgloss.Style
	status   lipgloss.Style
	help     lipgloss.Style
}

func newStyles(theme chat.Theme) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[chat.ThemeDark]
	}

	return styles{
		header: lipgloss.NewStyle().
			Background(p.bar).
			Foreground(p.foreground).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.foreground).
			Background(p.bar),
		toggle: lipgloss.NewStyle().
			Foreground(p.accent).
			Background(p.bar).
			Bold(true),
		session: lipgloss.NewStyle().
			Foreground(p.muted).
			Background(p.bar),
		user: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(p.userBubble).
			Padding(0, 1),
		bot: lipgloss.NewStyle().
			Foreground(p.foreground).
			Background(p.botBubble).
			Padding(0, 1),
		label: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.accent),
		welcome: lipgloss.NewStyle().
			Foreground(p.muted).
			Align(lipgloss.Center),
		thinking: lipgloss.NewStyle().
			Foreground(p.muted).
			Italic(true),
		input: lipgloss.NewStyle().
			Foreground(p.foreground).
			Background(p.bar).
			Padding(0, 1),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		help: lipgloss.NewStyle().
			Foreground(p.muted),
	}
}

// toggleLabel names the theme the toggle switches to
func toggleLabel(theme chat.Theme) string {
	if theme == chat.ThemeDark {
		return "☀ Light"
	}
	return "🌙 Dark"
}
