package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeChatServer answers /chat/completions with a fixed reply and records request bodies
type fakeChatServer struct {
	mu     sync.Mutex
	bodies []map[string]any
	status int
	reply  string
}

func (f *fakeChatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
		return
	}
	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": f.reply},
		}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestOpenAI(t *testing.T, fake *fakeChatServer) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider("sk-test-key", srv.URL, "test-model", zap.NewNop(), true, option.WithMaxRetries(0))
}

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Parallel()

	fake := &fakeChatServer{reply: `{"task":"Buy milk","done":false}`}
	p := newTestOpenAI(t, fake)

	out, err := p.Complete(context.Background(), CompletionRequest{
		Operation:   "todo_item",
		System:      "be brief",
		History:     []ChatMessage{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}},
		Prompt:      "add milk",
		Temperature: TemperatureContent,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"task":"Buy milk","done":false}`, out)

	require.Len(t, fake.bodies, 1)
	body := fake.bodies[0]
	assert.Equal(t, "test-model", body["model"])
	assert.InDelta(t, 0.15, body["temperature"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
}

func TestOpenAIProvider_CompleteZeroTemperatureIsSent(t *testing.T) {
	t.Parallel()

	fake := &fakeChatServer{reply: NoTool}
	p := newTestOpenAI(t, fake)

	_, err := p.Complete(context.Background(), CompletionRequest{Operation: "tool_select", Prompt: "hello"})
	require.NoError(t, err)
	require.Len(t, fake.bodies, 1)
	assert.Contains(t, fake.bodies[0], "temperature")
	assert.NotContains(t, fake.bodies[0], "response_format")
}

func TestOpenAIProvider_CompleteErrors(t *testing.T) {
	t.Parallel()

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()
		p := newTestOpenAI(t, &fakeChatServer{status: http.StatusTooManyRequests})
		_, err := p.Complete(context.Background(), CompletionRequest{Operation: "chat", Prompt: "x"})
		require.Error(t, err)
		assert.True(t, IsRateLimitError(err))
	})

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		p := newTestOpenAI(t, &fakeChatServer{reply: ""})
		_, err := p.Complete(context.Background(), CompletionRequest{Operation: "chat", Prompt: "x"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestProviderRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	assert.Equal(t, []string{ProviderGemini, ProviderOpenAI}, r.Names())

	_, err := r.GetProvider(context.Background(), "nope", ProviderConfig{})
	var notFound *ErrProviderNotFound
	require.ErrorAs(t, err, &notFound)
	assert.EqualError(t, err, "AI provider not found: nope (available: gemini, openai)")

	_, err = r.GetProvider(context.Background(), ProviderOpenAI, ProviderConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = r.GetProvider(context.Background(), ProviderGemini, ProviderConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	p, err := r.GetProvider(context.Background(), ProviderOpenAI, ProviderConfig{APIKey: "sk-x", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
	assert.Equal(t, "m", p.Model())
}
