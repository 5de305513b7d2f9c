package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrorReply is shown in place of a reply when the completion service fails.
const ErrorReply = "⚠️ Error: Could not fetch response."

// Role identifies who authored a message
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// MessageID is a stable per-message identifier. Reveals address their
// target message by ID, never by position.
type MessageID string

// SessionID identifies one in-memory session
type SessionID string

func newMessageID() MessageID {
	return MessageID(uuid.NewString())
}

func newSessionID() SessionID {
	return SessionID(ulid.Make().String())
}

// Message is a single entry in the session log
type Message struct {
	ID        MessageID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Theme is the presentation preference of the session
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Toggled returns the other theme
func (t Theme) Toggled() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// ParseTheme maps a config value to a Theme. Empty means dark.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case "", ThemeDark:
		return ThemeDark, true
	case ThemeLight:
		return ThemeLight, true
	}
	return ThemeDark, false
}

// EventKind describes what changed in the session
type EventKind int

const (
	EventMessageAppended EventKind = iota
	EventMessageUpdated
	EventWaitingChanged
	EventRevealStarted
	EventRevealFinished
	EventThemeChanged
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventMessageAppended:
		return "message_appended"
	case EventMessageUpdated:
		return "message_updated"
	case EventWaitingChanged:
		return "waiting_changed"
	case EventRevealStarted:
		return "reveal_started"
	case EventRevealFinished:
		return "reveal_finished"
	case EventThemeChanged:
		return "theme_changed"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to the session listener after every change. Message
// is a copy taken when the event was produced.
type Event struct {
	Kind    EventKind
	Message Message
	Waiting bool
	Theme   Theme
}

// Listener receives session events. It is called without the controller
// lock held, possibly from several goroutines at once.
type Listener func(Event)
