package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/benvon/smart-docs/internal/metrics"
	"github.com/benvon/smart-docs/internal/request"
)

const (
	// ProviderGemini is the registry name of the Gemini provider
	ProviderGemini = "gemini"
	// DefaultGeminiModel is used when no model is configured
	DefaultGeminiModel = "gemini-1.5-pro"
)

// GeminiProvider implements AIProvider on the Gemini API
type GeminiProvider struct {
	client    *genai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewGeminiProvider creates a Gemini provider. baseURL is only set in tests.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY is not set", ErrNotConfigured)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	logger.Debug("gemini_provider_created",
		zap.String("model", model),
		zap.String("api_key", SanitizeAPIKey(apiKey)))

	return &GeminiProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}, nil
}

// RegisterGemini adds the Gemini provider to a registry
func RegisterGemini(r *ProviderRegistry) {
	r.Register(ProviderGemini, func(ctx context.Context, cfg ProviderConfig) (AIProvider, error) {
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Logger, cfg.DebugMode)
	})
}

// Name returns the provider identifier
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// Model returns the configured model
func (p *GeminiProvider) Model() string {
	return p.model
}

// Complete sends one generate-content request
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		var role genai.Role = genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	requestID := request.RequestID(ctx)
	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("provider", ProviderGemini),
			zap.String("operation", req.Operation),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(req.Prompt)),
			zap.Int("message_count", len(contents)),
			zap.String("prompt_preview", SanitizePrompt(req.Prompt, true)),
			zap.Strings("history", SanitizeMessages(req.History, false)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	latency := time.Since(start)
	metrics.ObserveLLMCall(ProviderGemini, req.Operation, latency, err)
	if err != nil {
		if p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("provider", ProviderGemini),
				zap.String("operation", req.Operation),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("%s request failed: %w", req.Operation, apiErr)
		}
		return "", fmt.Errorf("%s request failed: %w", req.Operation, err)
	}

	text := resp.Text()
	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", ProviderGemini),
			zap.String("operation", req.Operation),
			zap.String("model", p.model),
			zap.Int("response_length", len(text)),
			zap.String("response_preview", SanitizeResponse(text, true)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
