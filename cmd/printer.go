package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/jeanhaley/personal-chat-bot/chat"
)

// typewriter prints bot replies to a line-oriented terminal as they are
// revealed. Revealed content only ever grows, so each update prints the
// new suffix.
type typewriter struct {
	mutex   sync.Mutex
	out     io.Writer
	prefix  string
	current chat.MessageID
	printed int
	midLine bool
}

func newTypewriter(out io.Writer, prefix string) *typewriter {
	return &typewriter{out: out, prefix: prefix}
}

// listen is a chat.Listener
func (w *typewriter) listen(e chat.Event) {
	if e.Message.Role != chat.RoleBot {
		return
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	switch e.Kind {
	case chat.EventMessageAppended:
		w.endLine()
		fmt.Fprint(w.out, w.prefix)
		w.current = e.Message.ID
		w.printed = 0
		w.midLine = true
		w.write(e.Message)
		if e.Message.Content != "" {
			// appended in full, no reveal follows
			w.endLine()
		}

	case chat.EventMessageUpdated:
		w.write(e.Message)

	case chat.EventRevealFinished:
		w.write(e.Message)
		if e.Message.ID == w.current {
			w.endLine()
		}
	}
}

func (w *typewriter) write(msg chat.Message) {
	if msg.ID != w.current || len(msg.Content) <= w.printed {
		return
	}
	fmt.Fprint(w.out, msg.Content[w.printed:])
	w.printed = len(msg.Content)
}

func (w *typewriter) endLine() {
	if w.midLine {
		fmt.Fprintln(w.out)
		w.midLine = false
	}
}

// finish terminates a reply cut short by Close
func (w *typewriter) finish() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.endLine()
}
