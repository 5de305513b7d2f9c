package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeanhaley/personal-chat-bot/ai"
)

var (
	// ErrBusy is returned when a submission is made while another one is
	// still waiting for its reply.
	ErrBusy = errors.New("a submission is already waiting for a reply")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("chat session is closed")
)

// DefaultRequestTimeout is the request timeout written to new configs.
const DefaultRequestTimeout = 60 * time.Second

// ControllerConfig holds configuration for the chat controller
type ControllerConfig struct {
	DefaultModel      string        `json:"default_model"` // empty leaves the backend's model
	SystemInstruction string        `json:"system_instruction"`
	MaxTokens         int           `json:"max_tokens"`      // 0 leaves the backend default
	Temperature       *float64      `json:"temperature"`     // nil leaves the backend default
	RequestTimeout    time.Duration `json:"request_timeout"` // 0 means no timeout
	RevealInterval    time.Duration `json:"reveal_interval"`
	Overlap           OverlapPolicy `json:"overlap"`
	Theme             Theme         `json:"theme"`
}

// Option customises a Controller
type Option func(*Controller)

// WithLogger sets the logger used by the controller
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithListener registers the session event listener
func WithListener(listener Listener) Option {
	return func(c *Controller) { c.listener = listener }
}

// WithTicker replaces the ticker used to pace reveals
func WithTicker(newTicker TickerFunc) Option {
	return func(c *Controller) {
		if newTicker != nil {
			c.newTicker = newTicker
		}
	}
}

// Controller owns one chat session: the message log, the waiting flag and
// the reveals currently running.
type Controller struct {
	mutex sync.RWMutex

	backend           ai.Backend
	logger            *zap.Logger
	listener          Listener
	newTicker         TickerFunc
	defaultModel      string
	systemInstruction string
	maxTokens         int
	temperature       *float64
	requestTimeout    time.Duration
	revealInterval    time.Duration
	overlap           OverlapPolicy

	sessionID    SessionID
	messages     []Message
	index        map[MessageID]int
	pendingInput string
	waiting      bool
	theme        Theme
	reveals      map[MessageID]*activeReveal
	closed       bool
	submissions  int
	failures     int
	createdAt    time.Time
	updatedAt    time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new chat controller with the specified backend
func NewController(backend ai.Backend, config *ControllerConfig, opts ...Option) *Controller {
	if config == nil {
		config = &ControllerConfig{}
	}

	requestTimeout := max(config.RequestTimeout, 0)
	revealInterval := config.RevealInterval
	if revealInterval <= 0 {
		revealInterval = DefaultRevealInterval
	}
	overlap, ok := ParseOverlapPolicy(string(config.Overlap))
	if !ok {
		overlap = OverlapAllow
	}
	theme, ok := ParseTheme(string(config.Theme))
	if !ok {
		theme = ThemeDark
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	c := &Controller{
		backend:           backend,
		logger:            zap.NewNop(),
		newTicker:         NewTimeTicker,
		defaultModel:      config.DefaultModel,
		systemInstruction: config.SystemInstruction,
		maxTokens:         config.MaxTokens,
		temperature:       config.Temperature,
		requestTimeout:    requestTimeout,
		revealInterval:    revealInterval,
		overlap:           overlap,
		sessionID:         newSessionID(),
		messages:          make([]Message, 0),
		index:             make(map[MessageID]int),
		theme:             theme,
		reveals:           make(map[MessageID]*activeReveal),
		createdAt:         now,
		updatedAt:         now,
		ctx:               ctx,
		cancel:            cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("session", string(c.sessionID)))

	return c
}

// Submit sends input to the completion service and schedules the reveal of
// its reply. Blank input is ignored. Completion failures are absorbed: an
// error reply is appended to the log and Submit returns nil. Only ErrBusy
// and ErrClosed are returned.
func (c *Controller) Submit(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return ErrClosed
	}
	if c.waiting {
		c.mutex.Unlock()
		return ErrBusy
	}

	var events []Event
	if c.overlap == OverlapFlush {
		events = append(events, c.flushRevealsLocked()...)
	}
	user := c.appendLocked(Message{ID: newMessageID(), Role: RoleUser, Content: input})
	c.pendingInput = ""
	c.waiting = true
	c.submissions++
	backend := c.backend
	req := c.requestLocked(input)
	events = append(events,
		c.eventLocked(EventMessageAppended, user),
		c.eventLocked(EventWaitingChanged, Message{}))
	c.mutex.Unlock()
	c.emit(events...)

	c.logger.Debug("Submitting message",
		zap.String("message_id", string(user.ID)),
		zap.String("backend", backend.Name()),
		zap.Int("input_len", len(input)))

	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.requestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
	}
	start := time.Now()
	var resp *ai.CompletionResponse
	err := req.Validate()
	if err != nil {
		err = ai.Failure(backend.Name(), err)
	} else {
		resp, err = backend.Complete(reqCtx, req)
	}
	cancel()
	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = ai.Failure(backend.Name(), ai.ErrEmptyReply)
	}

	var started *activeReveal
	c.mutex.Lock()
	events = events[:0]
	if err != nil {
		c.failures++
		reply := c.appendLocked(Message{ID: newMessageID(), Role: RoleBot, Content: ErrorReply})
		events = append(events, c.eventLocked(EventMessageAppended, reply))
		c.logger.Warn("Completion failed",
			zap.String("message_id", string(user.ID)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	} else if c.closed {
		reply := c.appendLocked(Message{ID: newMessageID(), Role: RoleBot, Content: resp.Text})
		events = append(events, c.eventLocked(EventMessageAppended, reply))
	} else {
		started = c.scheduleRevealLocked(resp.Text)
		placeholder := c.appendLocked(Message{ID: started.Target(), Role: RoleBot})
		events = append(events,
			c.eventLocked(EventMessageAppended, placeholder),
			c.eventLocked(EventRevealStarted, placeholder))
		c.logger.Debug("Reply received",
			zap.String("message_id", string(placeholder.ID)),
			zap.Int("words", started.Len()),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
			zap.Duration("elapsed", time.Since(start)))
	}
	c.waiting = false
	events = append(events, c.eventLocked(EventWaitingChanged, Message{}))
	c.mutex.Unlock()

	c.emit(events...)
	if started != nil {
		close(started.ready)
	}
	return nil
}

func (c *Controller) requestLocked(input string) ai.CompletionRequest {
	req := ai.CompletionRequest{
		Model:             c.defaultModel,
		SystemInstruction: c.systemInstruction,
		Input:             input,
		Temperature:       c.temperature,
	}
	if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		req.MaxTokens = &maxTokens
	}
	return req
}

// scheduleRevealLocked starts the reveal goroutine. It does not tick until
// ready is closed, after the placeholder has been appended and announced.
func (c *Controller) scheduleRevealLocked(text string) *activeReveal {
	ctx, cancel := context.WithCancel(c.ctx)
	r := &activeReveal{
		Reveal: NewReveal(newMessageID(), text),
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.reveals[r.Target()] = r

	c.wg.Add(1)
	go c.runReveal(r)
	return r
}

func (c *Controller) runReveal(r *activeReveal) {
	defer c.wg.Done()
	defer close(r.done)
	defer c.dropReveal(r)

	select {
	case <-r.ready:
	case <-r.ctx.Done():
		return
	}

	ticker := c.newTicker(c.revealInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C():
			events, finished := c.stepReveal(r)
			c.emit(events...)
			if finished {
				return
			}
		}
	}
}

func (c *Controller) stepReveal(r *activeReveal) ([]Event, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// flushed, cleared or closed while waiting for the lock
	if r.ctx.Err() != nil {
		return nil, true
	}

	content, done := r.Step()
	msg, ok := c.setContentLocked(r.Target(), content)
	if !ok {
		r.cancel()
		return nil, true
	}

	events := []Event{c.eventLocked(EventMessageUpdated, msg)}
	if done {
		r.cancel()
		delete(c.reveals, r.Target())
		events = append(events, c.eventLocked(EventRevealFinished, msg))
		c.logger.Debug("Reveal finished", zap.String("message_id", string(msg.ID)), zap.Int("words", r.Len()))
	}
	return events, done
}

func (c *Controller) dropReveal(r *activeReveal) {
	r.cancel()
	c.mutex.Lock()
	if c.reveals[r.Target()] == r {
		delete(c.reveals, r.Target())
	}
	c.mutex.Unlock()
}

// flushRevealsLocked completes every running reveal at once.
func (c *Controller) flushRevealsLocked() []Event {
	var events []Event
	for id, r := range c.reveals {
		r.cancel()
		delete(c.reveals, id)
		for !r.Done() {
			r.Step()
		}
		if msg, ok := c.setContentLocked(id, r.Content()); ok {
			events = append(events,
				c.eventLocked(EventMessageUpdated, msg),
				c.eventLocked(EventRevealFinished, msg))
		}
	}
	return events
}

func (c *Controller) appendLocked(msg Message) Message {
	msg.CreatedAt = time.Now()
	c.index[msg.ID] = len(c.messages)
	c.messages = append(c.messages, msg)
	c.updatedAt = msg.CreatedAt
	return msg
}

func (c *Controller) setContentLocked(id MessageID, content string) (Message, bool) {
	i, ok := c.index[id]
	if !ok {
		return Message{}, false
	}
	c.messages[i].Content = content
	c.updatedAt = time.Now()
	return c.messages[i], true
}

func (c *Controller) eventLocked(kind EventKind, msg Message) Event {
	return Event{Kind: kind, Message: msg, Waiting: c.waiting, Theme: c.theme}
}

func (c *Controller) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.mutex.RLock()
	listener := c.listener
	c.mutex.RUnlock()
	if listener == nil {
		return
	}
	for _, e := range events {
		listener(e)
	}
}

// SetListener replaces the session event listener
func (c *Controller) SetListener(listener Listener) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.listener = listener
}

// Messages returns a copy of the message log
func (c *Controller) Messages() []Message {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)
	return messages
}

// Message returns the message with the given ID
func (c *Controller) Message(id MessageID) (Message, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return Message{}, false
	}
	return c.messages[i], true
}

// IsRevealing reports whether the message is still being revealed
func (c *Controller) IsRevealing(id MessageID) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.reveals[id]
	return ok
}

// ActiveReveals returns the number of reveals still running
func (c *Controller) ActiveReveals() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.reveals)
}

// WaitReveals blocks until every reveal running at call time has ended.
func (c *Controller) WaitReveals(ctx context.Context) error {
	c.mutex.RLock()
	dones := make([]chan struct{}, 0, len(c.reveals))
	for _, r := range c.reveals {
		dones = append(dones, r.done)
	}
	c.mutex.RUnlock()

	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Waiting reports whether a submission is waiting for its reply
func (c *Controller) Waiting() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.waiting
}

// PendingInput returns the text typed but not yet submitted
func (c *Controller) PendingInput() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.pendingInput
}

// SetPendingInput records the text currently being typed
func (c *Controller) SetPendingInput(input string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.pendingInput = input
}

// Theme returns the current theme
func (c *Controller) Theme() Theme {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.theme
}

// ToggleTheme switches between dark and light. The message log is untouched.
func (c *Controller) ToggleTheme() Theme {
	c.mutex.Lock()
	c.theme = c.theme.Toggled()
	event := c.eventLocked(EventThemeChanged, Message{})
	c.mutex.Unlock()

	c.emit(event)
	return event.Theme
}

// Clear removes every message and stops running reveals
func (c *Controller) Clear() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return ErrClosed
	}
	if c.waiting {
		c.mutex.Unlock()
		return ErrBusy
	}
	for id, r := range c.reveals {
		r.cancel()
		delete(c.reveals, id)
	}
	c.messages = make([]Message, 0)
	c.index = make(map[MessageID]int)
	c.updatedAt = time.Now()
	event := c.eventLocked(EventCleared, Message{})
	c.mutex.Unlock()

	c.emit(event)
	return nil
}

// Close cancels every running reveal and waits for them to stop. Messages
// keep the content revealed so far.
func (c *Controller) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	c.mutex.Unlock()

	c.wg.Wait()
	return nil
}

// SessionID returns the identifier of this session
func (c *Controller) SessionID() SessionID {
	return c.sessionID
}

// SetBackend allows changing the completion backend at runtime. The model
// override is dropped: it named a model of the previous backend, so later
// requests use the new backend's own model.
func (c *Controller) SetBackend(backend ai.Backend) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.backend = backend
	c.defaultModel = ""
}

// Backend returns the current completion backend
func (c *Controller) Backend() ai.Backend {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.backend
}

// IsBackendAvailable checks if the current backend is available
func (c *Controller) IsBackendAvailable(ctx context.Context) bool {
	return c.Backend().IsAvailable(ctx)
}

// SessionStats provides statistics about the session
type SessionStats struct {
	SessionID     SessionID `json:"session_id"`
	BackendName   string    `json:"backend_name"`
	TotalMessages int       `json:"total_messages"`
	UserMessages  int       `json:"user_messages"`
	BotMessages   int       `json:"bot_messages"`
	Submissions   int       `json:"submissions"`
	Failures      int       `json:"failures"`
	ActiveReveals int       `json:"active_reveals"`
	Theme         Theme     `json:"theme"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Stats returns session statistics
func (c *Controller) Stats() SessionStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := SessionStats{
		SessionID:     c.sessionID,
		BackendName:   c.backend.Name(),
		TotalMessages: len(c.messages),
		Submissions:   c.submissions,
		Failures:      c.failures,
		ActiveReveals: len(c.reveals),
		Theme:         c.theme,
		CreatedAt:     c.createdAt,
		UpdatedAt:     c.updatedAt,
	}
	for _, msg := range c.messages {
		switch msg.Role {
		case RoleUser:
			stats.UserMessages++
		case RoleBot:
			stats.BotMessages++
		}
	}
	return stats
}
