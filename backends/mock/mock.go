package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jeanhaley/personal-chat-bot/ai"
)

// MockBackend is a scripted completion backend. Replies are served from a
// queue; once it is empty the backend echoes the input.
type MockBackend struct {
	mutex   sync.Mutex
	config  map[string]interface{}
	name    string
	replies []string
	err     error
	delay   time.Duration
	gate    chan struct{}
	calls   []ai.CompletionRequest
}

// NewMockBackend creates a new mock backend instance
func NewMockBackend() *MockBackend {
	return &MockBackend{
		config: make(map[string]interface{}),
		name:   "MockAI",
	}
}

// Name returns the name of the backend
func (m *MockBackend) Name() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.name
}

// IsAvailable always reports true
func (m *MockBackend) IsAvailable(ctx context.Context) bool {
	return true
}

// Configure applies backend settings. Supported keys: name, response,
// responses, error, delay.
func (m *MockBackend) Configure(config map[string]interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for key, value := range config {
		switch key {
		case "name":
			name, ok := value.(string)
			if !ok || name == "" {
				return fmt.Errorf("name must be a non-empty string")
			}
			m.name = name
		case "response":
			reply, ok := value.(string)
			if !ok {
				return fmt.Errorf("response must be a string")
			}
			m.replies = append(m.replies, reply)
		case "responses":
			replies, ok := value.([]string)
			if !ok {
				return fmt.Errorf("responses must be a []string")
			}
			m.replies = append(m.replies, replies...)
		case "error":
			switch v := value.(type) {
			case nil:
				m.err = nil
			case string:
				m.err = errors.New(v)
			case error:
				m.err = v
			default:
				return fmt.Errorf("error must be a string or error")
			}
		case "delay":
			switch v := value.(type) {
			case time.Duration:
				m.delay = v
			case string:
				d, err := time.ParseDuration(v)
				if err != nil {
					return fmt.Errorf("invalid delay: %w", err)
				}
				m.delay = d
			default:
				return fmt.Errorf("delay must be a duration")
			}
			if m.delay < 0 {
				return fmt.Errorf("delay must not be negative")
			}
		default:
			return fmt.Errorf("unknown config key %q", key)
		}
		m.config[key] = value
	}

	return nil
}

// QueueReply appends replies served by subsequent calls, in order
func (m *MockBackend) QueueReply(replies ...string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.replies = append(m.replies, replies...)
}

// FailWith makes every following call fail with err. A nil err restores
// normal behaviour.
func (m *MockBackend) FailWith(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.err = err
}

// Hold blocks calls until the returned release func is called.
func (m *MockBackend) Hold() (release func()) {
	gate := make(chan struct{})
	m.mutex.Lock()
	m.gate = gate
	m.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mutex.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mutex.Unlock()
			close(gate)
		})
	}
}

// Calls returns a copy of every request received so far
func (m *MockBackend) Calls() []ai.CompletionRequest {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	calls := make([]ai.CompletionRequest, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of requests received
func (m *MockBackend) CallCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.calls)
}

// Complete records the request and serves the next scripted reply
func (m *MockBackend) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	m.mutex.Lock()
	m.calls = append(m.calls, req)
	gate, delay, name := m.gate, m.delay, m.name
	m.mutex.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ai.Failure(name, ctx.Err())
		}
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ai.Failure(name, ctx.Err())
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, ai.Failure(name, err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.err != nil {
		return nil, ai.Failure(name, m.err)
	}

	text := "Mock reply to: " + strings.TrimSpace(req.Input)
	if len(m.replies) > 0 {
		text = m.replies[0]
		m.replies = m.replies[1:]
	}

	promptTokens := len(strings.Fields(req.SystemInstruction + " " + req.Input))
	completionTokens := len(strings.Fields(text))

	return &ai.CompletionResponse{
		Text:    text,
		Model:   req.Model,
		Created: time.Now(),
		Usage: ai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}
