package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxHistory caps how many messages a session remembers
const DefaultMaxHistory = 40

// ChatService keeps per-session conversation memory and answers free-form messages
type ChatService struct {
	provider   AIProvider
	maxHistory int
	sessions   map[string]*ChatSession
	mu         sync.RWMutex // Protects concurrent access to sessions map
}

// ChatSession represents an active chat session
type ChatSession struct {
	ID           string
	Messages     []ChatMessage
	CreatedAt    time.Time
	LastActivity time.Time
	mu           sync.Mutex
}

// NewChatService creates a new chat service. maxHistory <= 0 selects DefaultMaxHistory.
func NewChatService(provider AIProvider, maxHistory int) *ChatService {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &ChatService{
		provider:   provider,
		maxHistory: maxHistory,
		sessions:   make(map[string]*ChatSession),
	}
}

// GetOrCreateSession gets or creates a chat session
func (s *ChatService) GetOrCreateSession(id string) *ChatSession {
	s.mu.RLock()
	if session, exists := s.sessions[id]; exists {
		s.mu.RUnlock()
		return session
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// another goroutine may have created it between the locks
	if session, exists := s.sessions[id]; exists {
		return session
	}

	now := time.Now()
	session := &ChatSession{
		ID:           id,
		Messages:     make([]ChatMessage, 0),
		CreatedAt:    now,
		LastActivity: now,
	}
	s.sessions[id] = session
	return session
}

// Reply sends the message with the session history and records both turns.
// A failed call leaves the history untouched.
func (s *ChatService) Reply(ctx context.Context, sessionID, message string) (string, error) {
	if s.provider == nil {
		return "", ErrNotConfigured
	}
	session := s.GetOrCreateSession(sessionID)

	session.mu.Lock()
	defer session.mu.Unlock()

	history := make([]ChatMessage, len(session.Messages))
	copy(history, session.Messages)

	reply, err := s.provider.Complete(ctx, CompletionRequest{
		Operation:   "chat",
		System:      ChatSystemPrompt,
		History:     history,
		Prompt:      message,
		Temperature: TemperatureChat,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get chat response: %w", err)
	}

	session.Messages = append(session.Messages,
		ChatMessage{Role: RoleUser, Content: message},
		ChatMessage{Role: RoleAssistant, Content: reply},
	)
	if over := len(session.Messages) - s.maxHistory; over > 0 {
		session.Messages = append([]ChatMessage(nil), session.Messages[over:]...)
	}
	session.LastActivity = time.Now()

	return reply, nil
}

// History returns a copy of the remembered messages of a session
func (s *ChatService) History(sessionID string) []ChatMessage {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	out := make([]ChatMessage, len(session.Messages))
	copy(out, session.Messages)
	return out
}

// CloseSession forgets a session and reports whether it existed
func (s *ChatService) CloseSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// PruneIdle forgets sessions idle for longer than maxIdle and returns how many were dropped
func (s *ChatService) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, session := range s.sessions {
		session.mu.Lock()
		idle := session.LastActivity.Before(cutoff)
		session.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}
