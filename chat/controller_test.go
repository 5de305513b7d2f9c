package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley/personal-chat-bot/ai"
	"github.com/jeanhaley/personal-chat-bot/backends/mock"
)

func TestNewController(t *testing.T) {
	backend := mock.NewMockBackend()
	controller := NewController(backend, nil)
	defer controller.Close()

	require.NotNil(t, controller)
	assert.Same(t, backend, controller.Backend())
	assert.Zero(t, controller.requestTimeout)
	assert.Equal(t, DefaultRevealInterval, controller.revealInterval)
	assert.Equal(t, OverlapAllow, controller.overlap)
	assert.Equal(t, ThemeDark, controller.Theme())
	assert.NotEmpty(t, controller.SessionID())
	assert.Empty(t, controller.Messages())
	assert.False(t, controller.Waiting())
}

func TestController_Submit_BlankInputIsNoop(t *testing.T) {
	for _, input := range []string{"", " ", "\t", " \n  "} {
		backend := mock.NewMockBackend()
		h := newHarness(t, backend, nil)

		require.NoError(t, h.ctrl.Submit(context.Background(), input))

		assert.Empty(t, h.ctrl.Messages(), "input %q", input)
		assert.Zero(t, backend.CallCount(), "input %q", input)
		assert.Empty(t, h.events.all(), "input %q", input)
		assert.False(t, h.ctrl.Waiting())
	}
}

func TestController_Submit_AppendsUserMessageBeforeRequest(t *testing.T) {
	backend := mock.NewMockBackend()
	release := backend.Hold()
	defer release()
	h := newHarness(t, backend, nil)
	h.ctrl.SetPendingInput("what is a trie?")

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Submit(context.Background(), "what is a trie?") }()

	e := h.events.waitFor(t, func(e Event) bool { return e.Kind == EventWaitingChanged && e.Waiting })
	assert.True(t, e.Waiting)

	messages := h.ctrl.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "what is a trie?", messages[0].Content)
	assert.True(t, h.ctrl.Waiting())
	assert.Empty(t, h.ctrl.PendingInput())

	events := h.events.all()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, EventMessageAppended, events[0].Kind)
	assert.Equal(t, messages[0].ID, events[0].Message.ID)

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Submit did not return")
	}
	assert.False(t, h.ctrl.Waiting())

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "what is a trie?", calls[0].Input)
}

func TestController_Submit_PassesConfiguration(t *testing.T) {
	backend := mock.NewMockBackend()
	temperature := 0.3
	h := newHarness(t, backend, &ControllerConfig{
		DefaultModel:      "gemini-2.0-flash",
		SystemInstruction: "Only talk about data structures.",
		MaxTokens:         256,
		Temperature:       &temperature,
	})

	require.NoError(t, h.ctrl.Submit(context.Background(), "hi"))

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gemini-2.0-flash", calls[0].Model)
	assert.Equal(t, "Only talk about data structures.", calls[0].SystemInstruction)
	require.NotNil(t, calls[0].MaxTokens)
	assert.Equal(t, 256, *calls[0].MaxTokens)
	require.NotNil(t, calls[0].Temperature)
	assert.Equal(t, 0.3, *calls[0].Temperature)
}

func TestController_Submit_RevealsReplyWordByWord(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("alpha beta gamma")
	h := newHarness(t, backend, nil)

	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))
	assert.False(t, h.ctrl.Waiting())

	messages := h.ctrl.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	bot := messages[1]
	assert.Equal(t, RoleBot, bot.Role)
	assert.True(t, h.ctrl.IsRevealing(bot.ID))

	ticker := h.tickers.next(t)
	seen := []string{bot.Content}
	for i := 0; i < 3; i++ {
		ticker.tick(t)
		seen = append(seen, h.events.waitUpdate(t, bot.ID))
	}
	assert.Equal(t, []string{"", "alpha", "alpha beta", "alpha beta gamma"}, seen)

	h.events.waitFor(t, isKind(EventRevealFinished, bot.ID))
	ticker.waitStopped(t)

	final, ok := h.ctrl.Message(bot.ID)
	require.True(t, ok)
	assert.Equal(t, "alpha beta gamma", final.Content)
	assert.False(t, h.ctrl.IsRevealing(bot.ID))
	assert.Zero(t, h.ctrl.ActiveReveals())
}

func TestController_Submit_PlaceholderAnnouncedBeforeFirstTick(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("one two")
	h := newHarness(t, backend, nil)

	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))
	bot := h.lastBot(t)
	ticker := h.tickers.next(t)
	ticker.tick(t)
	h.events.waitUpdate(t, bot.ID)

	appended, updated := -1, -1
	for i, e := range h.events.all() {
		if e.Message.ID != bot.ID {
			continue
		}
		if e.Kind == EventMessageAppended && appended < 0 {
			appended = i
		}
		if e.Kind == EventMessageUpdated && updated < 0 {
			updated = i
		}
	}
	require.GreaterOrEqual(t, appended, 0)
	assert.Less(t, appended, updated)
}

func TestController_Reveal_HaltsAfterOneTickPerWord(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		ticks int
	}{
		{name: "one word", reply: "hello", ticks: 1},
		{name: "five words", reply: "a b c d e", ticks: 5},
		{name: "double space", reply: "double  space", ticks: 3},
		{name: "multi line", reply: "line one\nline two", ticks: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := mock.NewMockBackend()
			backend.QueueReply(tt.reply)
			h := newHarness(t, backend, nil)

			require.NoError(t, h.ctrl.Submit(context.Background(), "go"))
			bot := h.lastBot(t)
			ticker := h.tickers.next(t)

			updates := 0
			for i := 0; i < tt.ticks; i++ {
				assert.False(t, ticker.isStopped(), "ticker stopped after %d ticks", i)
				ticker.tick(t)
				h.events.waitUpdate(t, bot.ID)
				updates++
			}
			ticker.waitStopped(t)

			assert.Equal(t, tt.ticks, updates)
			final, _ := h.ctrl.Message(bot.ID)
			assert.Equal(t, tt.reply, final.Content)

			// nothing consumes further ticks
			select {
			case ticker.ch <- time.Now():
				t.Fatal("reveal consumed a tick after finishing")
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

func TestController_Submit_Failure(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.FailWith(errors.New("network unreachable"))
	h := newHarness(t, backend, nil)

	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))

	messages := h.ctrl.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, RoleBot, messages[1].Role)
	assert.Equal(t, ErrorReply, messages[1].Content)

	assert.False(t, h.ctrl.Waiting())
	assert.Zero(t, h.ctrl.ActiveReveals())
	assert.Zero(t, h.tickers.count(), "no reveal should be scheduled")
	assert.Equal(t, 1, h.ctrl.Stats().Failures)

	for _, e := range h.events.all() {
		assert.NotEqual(t, EventRevealStarted, e.Kind)
	}

	// the session continues normally
	backend.FailWith(nil)
	backend.QueueReply("recovered")
	require.NoError(t, h.ctrl.Submit(context.Background(), "again"))
	assert.Len(t, h.ctrl.Messages(), 4)
}

func TestController_Submit_EmptyReplyIsFailure(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("   ")
	h := newHarness(t, backend, nil)

	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))
	assert.Equal(t, ErrorReply, h.lastBot(t).Content)
	assert.Zero(t, h.ctrl.ActiveReveals())
}

func TestController_Submit_RequestTimeout(t *testing.T) {
	backend := mock.NewMockBackend()
	require.NoError(t, backend.Configure(map[string]interface{}{"delay": time.Hour}))
	h := newHarness(t, backend, &ControllerConfig{RequestTimeout: 20 * time.Millisecond})

	start := time.Now()
	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))
	assert.Less(t, time.Since(start), waitTimeout)
	assert.Equal(t, ErrorReply, h.lastBot(t).Content)
	assert.False(t, h.ctrl.Waiting())
}

func TestController_Submit_ZeroTimeoutMeansNone(t *testing.T) {
	backend := mock.NewMockBackend()
	require.NoError(t, backend.Configure(map[string]interface{}{"delay": 30 * time.Millisecond}))
	h := newHarness(t, backend, &ControllerConfig{RequestTimeout: 0})

	require.Zero(t, h.ctrl.requestTimeout)
	require.NoError(t, h.ctrl.Submit(context.Background(), "slow one"))

	bot := h.lastBot(t)
	assert.NotEqual(t, ErrorReply, bot.Content)
	assert.True(t, h.ctrl.IsRevealing(bot.ID))
}

func TestController_Submit_InvalidRequestIsFailure(t *testing.T) {
	backend := mock.NewMockBackend()
	temperature := 3.0
	h := newHarness(t, backend, &ControllerConfig{Temperature: &temperature})

	require.NoError(t, h.ctrl.Submit(context.Background(), "hi"))

	assert.Zero(t, backend.CallCount())
	assert.Equal(t, ErrorReply, h.lastBot(t).Content)
	assert.Equal(t, 1, h.ctrl.Stats().Failures)
}

func TestController_Submit_BusyWhileWaiting(t *testing.T) {
	backend := mock.NewMockBackend()
	release := backend.Hold()
	defer release()
	h := newHarness(t, backend, nil)

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Submit(context.Background(), "first") }()
	h.events.waitFor(t, func(e Event) bool { return e.Kind == EventWaitingChanged && e.Waiting })

	err := h.ctrl.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, h.ctrl.Messages(), 1)
	assert.ErrorIs(t, h.ctrl.Clear(), ErrBusy)

	release()
	require.NoError(t, <-done)
	assert.Len(t, h.ctrl.Messages(), 2)
}

func TestController_ConcurrentReveals_TargetTheirOwnMessage(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("one two three", "four five")
	h := newHarness(t, backend, nil)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Submit(ctx, "first"))
	first := h.lastBot(t)
	firstTicker := h.tickers.next(t)
	firstTicker.tick(t)
	assert.Equal(t, "one", h.events.waitUpdate(t, first.ID))

	// second submission while the first reveal is still running
	require.NoError(t, h.ctrl.Submit(ctx, "second"))
	second := h.lastBot(t)
	require.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, h.ctrl.ActiveReveals())

	secondTicker := h.tickers.next(t)
	secondTicker.tick(t)
	h.events.waitUpdate(t, second.ID)
	secondTicker.tick(t)
	h.events.waitUpdate(t, second.ID)
	secondTicker.waitStopped(t)

	msg, _ := h.ctrl.Message(first.ID)
	assert.Equal(t, "one", msg.Content, "first reply must not be touched by the second reveal")
	msg, _ = h.ctrl.Message(second.ID)
	assert.Equal(t, "four five", msg.Content)

	firstTicker.tick(t)
	h.events.waitUpdate(t, first.ID)
	firstTicker.tick(t)
	h.events.waitUpdate(t, first.ID)
	firstTicker.waitStopped(t)

	messages := h.ctrl.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "one two three", messages[1].Content)
	assert.Equal(t, "second", messages[2].Content)
	assert.Equal(t, "four five", messages[3].Content)

	for _, e := range h.events.all() {
		if e.Kind == EventMessageUpdated && e.Message.ID == second.ID {
			assert.Contains(t, []string{"four", "four five"}, e.Message.Content)
		}
	}
}

func TestController_OverlapFlush_CompletesRunningReveal(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("one two three", "four five")
	h := newHarness(t, backend, &ControllerConfig{Overlap: OverlapFlush})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Submit(ctx, "first"))
	first := h.lastBot(t)
	firstTicker := h.tickers.next(t)
	firstTicker.tick(t)
	h.events.waitUpdate(t, first.ID)

	require.NoError(t, h.ctrl.Submit(ctx, "second"))
	firstTicker.waitStopped(t)

	msg, _ := h.ctrl.Message(first.ID)
	assert.Equal(t, "one two three", msg.Content)
	assert.False(t, h.ctrl.IsRevealing(first.ID))
	assert.True(t, h.ctrl.IsRevealing(h.lastBot(t).ID))
	assert.Equal(t, 1, h.ctrl.ActiveReveals())
}

func TestController_Close_CancelsReveals(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("alpha beta gamma")
	h := newHarness(t, backend, nil)

	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))
	bot := h.lastBot(t)
	ticker := h.tickers.next(t)
	ticker.tick(t)
	h.events.waitUpdate(t, bot.ID)

	require.NoError(t, h.ctrl.Close())
	ticker.waitStopped(t)

	msg, _ := h.ctrl.Message(bot.ID)
	assert.Equal(t, "alpha", msg.Content)
	assert.Zero(t, h.ctrl.ActiveReveals())

	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), "more"), ErrClosed)
	assert.ErrorIs(t, h.ctrl.Clear(), ErrClosed)
	assert.NoError(t, h.ctrl.Close(), "Close is idempotent")
}

func TestController_ToggleTheme_LeavesMessagesAlone(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.FailWith(errors.New("offline"))
	h := newHarness(t, backend, nil)
	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))

	before := h.ctrl.Messages()
	original := h.ctrl.Theme()

	assert.Equal(t, ThemeLight, h.ctrl.ToggleTheme())
	assert.Equal(t, original, h.ctrl.ToggleTheme())

	assert.Equal(t, original, h.ctrl.Theme())
	assert.Equal(t, before, h.ctrl.Messages())

	var themeEvents []Theme
	for _, e := range h.events.all() {
		if e.Kind == EventThemeChanged {
			themeEvents = append(themeEvents, e.Theme)
		}
	}
	assert.Equal(t, []Theme{ThemeLight, ThemeDark}, themeEvents)
}

func TestController_Clear(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("alpha beta")
	h := newHarness(t, backend, nil)

	require.NoError(t, h.ctrl.Submit(context.Background(), "hello"))
	ticker := h.tickers.next(t)

	require.NoError(t, h.ctrl.Clear())
	ticker.waitStopped(t)

	assert.Empty(t, h.ctrl.Messages())
	assert.Zero(t, h.ctrl.ActiveReveals())
	h.events.waitFor(t, func(e Event) bool { return e.Kind == EventCleared })
}

func TestController_WaitReveals(t *testing.T) {
	backend := mock.NewMockBackend()
	backend.QueueReply("a b c d")
	controller := NewController(backend, &ControllerConfig{RevealInterval: time.Millisecond})
	defer controller.Close()

	require.NoError(t, controller.Submit(context.Background(), "go"))

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, controller.WaitReveals(ctx))

	messages := controller.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "a b c d", messages[1].Content)
}

func TestController_Stats(t *testing.T) {
	backend := mock.NewMockBackend()
	h := newHarness(t, backend, nil)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Submit(ctx, "one"))
	backend.FailWith(errors.New("down"))
	require.NoError(t, h.ctrl.Submit(ctx, "two"))

	stats := h.ctrl.Stats()
	assert.Equal(t, h.ctrl.SessionID(), stats.SessionID)
	assert.Equal(t, "MockAI", stats.BackendName)
	assert.Equal(t, 4, stats.TotalMessages)
	assert.Equal(t, 2, stats.UserMessages)
	assert.Equal(t, 2, stats.BotMessages)
	assert.Equal(t, 2, stats.Submissions)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.ActiveReveals)
	assert.False(t, stats.UpdatedAt.Before(stats.CreatedAt))
}

func TestController_SetBackend(t *testing.T) {
	first := mock.NewMockBackend()
	second := mock.NewMockBackend()
	require.NoError(t, second.Configure(map[string]interface{}{"name": "Second"}))
	h := newHarness(t, first, nil)

	h.ctrl.SetBackend(second)
	require.NoError(t, h.ctrl.Submit(context.Background(), "hi"))

	assert.Zero(t, first.CallCount())
	assert.Equal(t, 1, second.CallCount())
	assert.True(t, h.ctrl.IsBackendAvailable(context.Background()))
}

func TestController_SetBackend_DropsModelOverride(t *testing.T) {
	first := mock.NewMockBackend()
	second := mock.NewMockBackend()
	h := newHarness(t, first, &ControllerConfig{DefaultModel: "gemini-2.0-flash"})

	require.NoError(t, h.ctrl.Submit(context.Background(), "one"))
	h.ctrl.SetBackend(second)
	require.NoError(t, h.ctrl.Submit(context.Background(), "two"))

	require.Len(t, first.Calls(), 1)
	assert.Equal(t, "gemini-2.0-flash", first.Calls()[0].Model)
	require.Len(t, second.Calls(), 1)
	assert.Empty(t, second.Calls()[0].Model)
}

// nilBackend returns a nil response without an error.
type nilBackend struct{}

func (nilBackend) Name() string { return "nil" }

func (nilBackend) IsAvailable(context.Context) bool { return true }

func (nilBackend) Complete(context.Context, ai.CompletionRequest) (*ai.CompletionResponse, error) {
	return nil, nil
}

func TestController_Submit_NilResponseIsFailure(t *testing.T) {
	h := newHarness(t, nilBackend{}, nil)
	require.NoError(t, h.ctrl.Submit(context.Background(), "hi"))
	assert.Equal(t, ErrorReply, h.lastBot(t).Content)
}
