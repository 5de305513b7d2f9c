package chat

import (
	"context"
	"strings"
	"time"
)

// DefaultRevealInterval is the time between two revealed words.
const DefaultRevealInterval = 40 * time.Millisecond

// Reveal progressively rebuilds a reply one word per step. Words are split
// on single spaces, so runs of spaces survive as empty words and newlines
// stay inside their word.
type Reveal struct {
	target   MessageID
	words    []string
	revealed int
}

// NewReveal prepares a reveal of text into the message target.
func NewReveal(target MessageID, text string) *Reveal {
	return &Reveal{
		target: target,
		words:  strings.Split(text, " "),
	}
}

// Target returns the ID of the message being revealed
func (r *Reveal) Target() MessageID { return r.target }

// Len returns the number of steps the reveal takes
func (r *Reveal) Len() int { return len(r.words) }

// Revealed returns how many words have been shown
func (r *Reveal) Revealed() int { return r.revealed }

// Done reports whether every word has been shown
func (r *Reveal) Done() bool { return r.revealed >= len(r.words) }

// Content returns the text shown so far
func (r *Reveal) Content() string {
	return strings.Join(r.words[:r.revealed], " ")
}

// Full returns the complete text
func (r *Reveal) Full() string {
	return strings.Join(r.words, " ")
}

// Step shows the next word and returns the text shown so far. Once done,
// Step is a no-op.
func (r *Reveal) Step() (content string, done bool) {
	if !r.Done() {
		r.revealed++
	}
	return r.Content(), r.Done()
}

// Ticker delivers reveal ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	ticker *time.Ticker
}

// NewTimeTicker returns a Ticker backed by time.Ticker
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{ticker: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time { return t.ticker.C }
func (t *timeTicker) Stop()               { t.ticker.Stop() }

// OverlapPolicy decides what happens to a running reveal when a new
// submission starts.
type OverlapPolicy string

const (
	// OverlapAllow lets reveals run side by side; each writes only its own message.
	OverlapAllow OverlapPolicy = "overlap"
	// OverlapFlush completes running reveals instantly when a new submission starts.
	OverlapFlush OverlapPolicy = "flush"
)

// ParseOverlapPolicy maps a config value to a policy. Empty means overlap.
func ParseOverlapPolicy(s string) (OverlapPolicy, bool) {
	switch OverlapPolicy(s) {
	case "", OverlapAllow:
		return OverlapAllow, true
	case OverlapFlush:
		return OverlapFlush, true
	}
	return OverlapAllow, false
}

// activeReveal is a Reveal scheduled on a ticker.
type activeReveal struct {
	*Reveal
	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan struct{}
}
