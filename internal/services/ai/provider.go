package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Temperatures used by the assistant. Tool selection must be deterministic;
// generated content stays close to the prompt; conversation is looser.
const (
	TemperatureToolSelect = 0.0
	TemperatureContent    = 0.15
	TemperatureChat       = 0.6
)

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AIProvider is the interface for AI providers
type AIProvider interface {
	// Complete sends one prompt (plus optional history) and returns the model's text
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name returns the provider identifier used in configuration
	Name() string

	// Model returns the model the provider talks to
	Model() string
}

// CompletionRequest describes a single model call
type CompletionRequest struct {
	// Operation names the call in logs and metrics, e.g. "tool_select"
	Operation   string
	System      string
	History     []ChatMessage
	Prompt      string
	Temperature float64
	// JSON asks the provider for a JSON object response where supported
	JSON bool
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ProviderConfig carries what a factory needs to build a provider
type ProviderConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	Logger    *zap.Logger
	DebugMode bool
}

// ProviderFactory creates an AI provider from configuration
type ProviderFactory func(ctx context.Context, config ProviderConfig) (AIProvider, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// DefaultRegistry returns a registry with every built-in provider registered
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterOpenAI(r)
	RegisterGemini(r)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// Names lists the registered providers
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(ctx context.Context, name string, config ProviderConfig) (AIProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name, Available: r.Names()}
	}

	return factory(ctx, config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name      string
	Available []string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("AI provider not found: %s (available: %s)", e.Name, strings.Join(e.Available, ", "))
}
