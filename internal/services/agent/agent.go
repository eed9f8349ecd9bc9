// Package agent turns chat messages into file operations. A deterministic
// selector call decides whether a message asks for a tool; everything else
// goes to the conversational model.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/logger"
	"github.com/benvon/smart-docs/internal/models"
	"github.com/benvon/smart-docs/internal/queue"
	"github.com/benvon/smart-docs/internal/request"
	"github.com/benvon/smart-docs/internal/services/ai"
	"github.com/benvon/smart-docs/internal/store"
	"github.com/benvon/smart-docs/internal/telemetry"
)

// Response modes
const (
	ModeTool = "tool"
	ModeChat = "chat"
)

// Response is the answer to one chat message
type Response struct {
	Mode          string      `json:"mode"`
	Result        *ToolResult `json:"result,omitempty"`
	GeneratedText string      `json:"generated_text,omitempty"`
}

// Agent routes chat messages to tools or conversation
type Agent struct {
	provider   ai.AIProvider
	chat       *ai.ChatService
	generator  *Generator
	store      *store.FileStore
	normalizer *document.Normalizer
	enqueuer   queue.Enqueuer
	logger     *zap.Logger
}

// Option configures an Agent
type Option func(*Agent)

// WithEnqueuer defers content generation for new files to a worker
func WithEnqueuer(q queue.Enqueuer) Option {
	return func(a *Agent) {
		a.enqueuer = q
	}
}

// New creates an agent. provider may be nil, in which case files are
// created with default content and chat messages are refused.
func New(provider ai.AIProvider, fs *store.FileStore, normalizer *document.Normalizer, log *zap.Logger, opts ...Option) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = document.New()
	}
	a := &Agent{
		provider:   provider,
		store:      fs,
		normalizer: normalizer,
		generator:  NewGenerator(provider, normalizer, log),
		logger:     log,
	}
	if provider != nil {
		a.chat = ai.NewChatService(provider, 0)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generator exposes the content generator, shared with the worker
func (a *Agent) Generator() *Generator {
	return a.generator
}

// Chat returns the conversation memory, nil without a provider
func (a *Agent) Chat() *ai.ChatService {
	return a.chat
}

// ResetSession forgets the conversation of the session carried by ctx
func (a *Agent) ResetSession(ctx context.Context) bool {
	if a.chat == nil {
		return false
	}
	return a.chat.CloseSession(request.SessionID(ctx))
}

// HandleMessage answers one user message. Only a failing selector or chat
// call is an error; tool failures are reported inside the result.
func (a *Agent) HandleMessage(ctx context.Context, content string) (*Response, error) {
	if a.provider == nil {
		return nil, ai.ErrNotConfigured
	}

	sessionID := request.SessionID(ctx)
	ctx, span := telemetry.StartSpan(ctx, "agent.handle_message",
		attribute.String("session_id", logger.SanitizeSessionID(sessionID)))
	defer span.End()

	selection, err := a.provider.Complete(ctx, ai.CompletionRequest{
		Operation:   "tool_select",
		Prompt:      ai.ToolSelectorPrompt(Tools, content),
		Temperature: ai.TemperatureToolSelect,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("tool selection failed: %w", err)
	}

	if name, args, ok := a.parseToolCall(selection); ok {
		if _, set := args["user_request"]; !set {
			args["user_request"] = content
		}
		span.SetAttributes(attribute.String("mode", ModeTool), attribute.String("tool", name))
		return &Response{Mode: ModeTool, Result: a.Dispatch(ctx, name, args)}, nil
	}

	span.SetAttributes(attribute.String("mode", ModeChat))
	reply, err := a.chat.Reply(ctx, sessionID, content)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Response{Mode: ModeChat, GeneratedText: reply}, nil
}

// parseToolCall accepts only {"type":"tool_call","name":<known tool>,"arguments":{...}}.
// Anything else, NO_TOOL included, falls back to conversation.
func (a *Agent) parseToolCall(selection string) (string, Args, bool) {
	if strings.TrimSpace(selection) == ai.NoTool {
		return "", nil, false
	}
	obj, err := ai.ExtractJSONObject(selection)
	if err != nil {
		a.logger.Debug("tool_selection_unparsed",
			zap.String("output", ai.SanitizeResponse(selection, false)),
			zap.Error(err))
		return "", nil, false
	}
	if t, _ := obj["type"].(string); t != "tool_call" {
		return "", nil, false
	}
	name, _ := obj["name"].(string)
	if !knownTool(name) {
		return "", nil, false
	}

	raw, present := obj["arguments"]
	if !present {
		return name, Args{}, true
	}
	args, ok := raw.(map[string]any)
	if !ok {
		return "", nil, false
	}
	return name, Args(args), true
}

func knownTool(name string) bool {
	for _, t := range Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Enhance personalizes a template for a user profile
func (a *Agent) Enhance(ctx context.Context, template map[string]any, profile map[string]any) (*models.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "agent.enhance")
	defer span.End()

	doc, err := a.generator.Enhance(ctx, template, profile)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return doc, nil
}
