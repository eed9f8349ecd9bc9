package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAIProvider is a mock implementation of AIProvider
type mockAIProvider struct {
	mu           sync.Mutex
	requests     []CompletionRequest
	completeFunc func(ctx context.Context, req CompletionRequest) (string, error)
}

func (m *mockAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return "ok", nil
}

func (m *mockAIProvider) Name() string  { return "mock" }
func (m *mockAIProvider) Model() string { return "mock-model" }

func TestChatService_ReplyKeepsHistoryPerSession(t *testing.T) {
	t.Parallel()

	mock := &mockAIProvider{completeFunc: func(_ context.Context, req CompletionRequest) (string, error) {
		return "echo: " + req.Prompt, nil
	}}
	svc := NewChatService(mock, 0)
	ctx := context.Background()

	out, err := svc.Reply(ctx, "a", "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", out)

	_, err = svc.Reply(ctx, "a", "again")
	require.NoError(t, err)
	_, err = svc.Reply(ctx, "b", "other")
	require.NoError(t, err)

	require.Len(t, mock.requests, 3)
	assert.Empty(t, mock.requests[0].History)
	assert.Equal(t, []ChatMessage{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "echo: hello"},
	}, mock.requests[1].History)
	assert.Empty(t, mock.requests[2].History)
	assert.Equal(t, TemperatureChat, mock.requests[0].Temperature)
	assert.Equal(t, ChatSystemPrompt, mock.requests[0].System)

	assert.Len(t, svc.History("a"), 4)
	assert.Len(t, svc.History("b"), 2)
	assert.Nil(t, svc.History("missing"))
}

func TestChatService_HistoryCap(t *testing.T) {
	t.Parallel()

	svc := NewChatService(&mockAIProvider{}, 4)
	for i := 0; i < 5; i++ {
		_, err := svc.Reply(context.Background(), "s", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	h := svc.History("s")
	require.Len(t, h, 4)
	assert.Equal(t, "m3", h[0].Content)
}

func TestChatService_FailedReplyLeavesHistory(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	svc := NewChatService(&mockAIProvider{completeFunc: func(context.Context, CompletionRequest) (string, error) {
		return "", boom
	}}, 0)
	_, err := svc.Reply(context.Background(), "s", "hi")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, svc.History("s"))

	_, err = NewChatService(nil, 0).Reply(context.Background(), "s", "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChatService_CloseAndPrune(t *testing.T) {
	t.Parallel()

	svc := NewChatService(&mockAIProvider{}, 0)
	_, _ = svc.Reply(context.Background(), "old", "x")
	_, _ = svc.Reply(context.Background(), "new", "y")

	svc.GetOrCreateSession("old").LastActivity = time.Now().Add(-2 * time.Hour)
	assert.Equal(t, 1, svc.PruneIdle(time.Hour))
	assert.Nil(t, svc.History("old"))

	assert.True(t, svc.CloseSession("new"))
	assert.Nil(t, svc.History("new"))
	assert.False(t, svc.CloseSession("new"))
}

func TestChatService_ConcurrentSessions(t *testing.T) {
	t.Parallel()

	svc := NewChatService(&mockAIProvider{}, 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Reply(context.Background(), fmt.Sprintf("s%d", i%3), "hi")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 3; i++ {
		total += len(svc.History(fmt.Sprintf("s%d", i)))
	}
	assert.Equal(t, 40, total)
}
