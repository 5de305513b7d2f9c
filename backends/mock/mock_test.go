package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley/personal-chat-bot/ai"
)

func TestNewMockBackend(t *testing.T) {
	backend := NewMockBackend()

	require.NotNil(t, backend)
	assert.Equal(t, "MockAI", backend.Name())
	assert.NotNil(t, backend.config, "Config map should be initialized")
	assert.True(t, backend.IsAvailable(context.Background()))
}

func TestMockBackend_Configure(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
		valid  bool
	}{
		{name: "empty config", config: map[string]interface{}{}, valid: true},
		{name: "custom name", config: map[string]interface{}{"name": "CustomMock"}, valid: true},
		{name: "empty name", config: map[string]interface{}{"name": ""}, valid: false},
		{name: "canned response", config: map[string]interface{}{"response": "hi"}, valid: true},
		{name: "canned responses", config: map[string]interface{}{"responses": []string{"a", "b"}}, valid: true},
		{name: "error string", config: map[string]interface{}{"error": "boom"}, valid: true},
		{name: "delay string", config: map[string]interface{}{"delay": "10ms"}, valid: true},
		{name: "bad delay", config: map[string]interface{}{"delay": "soon"}, valid: false},
		{name: "negative delay", config: map[string]interface{}{"delay": -time.Second}, valid: false},
		{name: "unknown key", config: map[string]interface{}{"colour": "red"}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMockBackend().Configure(tt.config)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMockBackend_Complete(t *testing.T) {
	backend := NewMockBackend()
	backend.QueueReply("alpha beta gamma", "second")
	ctx := context.Background()
	req := ai.CompletionRequest{Model: "mock-model", SystemInstruction: "be brief", Input: "hello"}

	resp, err := backend.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "alpha beta gamma", resp.Text)
	assert.Equal(t, "mock-model", resp.Model)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)

	resp, err = backend.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)

	// queue exhausted: echo
	resp, err = backend.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Mock reply to: hello", resp.Text)

	calls := backend.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "be brief", calls[0].SystemInstruction)
}

func TestMockBackend_Failure(t *testing.T) {
	backend := NewMockBackend()
	cause := errors.New("quota exceeded")
	backend.FailWith(cause)

	_, err := backend.Complete(context.Background(), ai.CompletionRequest{Model: "m", Input: "hi"})
	assert.ErrorIs(t, err, ai.ErrCompletionFailed)
	assert.ErrorIs(t, err, cause)

	backend.FailWith(nil)
	_, err = backend.Complete(context.Background(), ai.CompletionRequest{Model: "m", Input: "hi"})
	assert.NoError(t, err)
}

func TestMockBackend_ContextCancellation(t *testing.T) {
	backend := NewMockBackend()
	require.NoError(t, backend.Configure(map[string]interface{}{"delay": time.Hour}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := backend.Complete(ctx, ai.CompletionRequest{Model: "m", Input: "hi"})
	assert.ErrorIs(t, err, ai.ErrCompletionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMockBackend_Hold(t *testing.T) {
	backend := NewMockBackend()
	release := backend.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := backend.Complete(context.Background(), ai.CompletionRequest{Model: "m", Input: "hi"})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Complete returned before release")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release() // idempotent

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Complete did not return after release")
	}
}
