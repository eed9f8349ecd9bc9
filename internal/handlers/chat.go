package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/logger"
	"github.com/benvon/smart-docs/internal/request"
	"github.com/benvon/smart-docs/internal/services/agent"
	"github.com/benvon/smart-docs/internal/services/ai"
	"github.com/benvon/smart-docs/internal/validation"
)

// ChatHandler handles the assistant endpoints
type ChatHandler struct {
	agent  *agent.Agent
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(a *agent.Agent, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{agent: a, logger: log}
}

// RegisterRoutes registers chat routes
// The router should already have the /chat prefix
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat", h.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/enhance", h.Enhance).Methods(http.MethodPost)
	r.HandleFunc("/session", h.ResetSession).Methods(http.MethodDelete)
}

// ChatMessageRequest represents a chat message request
type ChatMessageRequest struct {
	Content string `json:"content" validate:"notblank,max=8000"`
}

// EnhanceRequest asks for a template personalized to a profile
type EnhanceRequest struct {
	Template    map[string]any `json:"template"`
	UserProfile map[string]any `json:"user_profile"`
}

// EnhanceResponse carries the personalized, normalized template
type EnhanceResponse struct {
	Enhanced any `json:"enhanced"`
}

// SendMessage answers one chat message with a tool result or a reply
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req ChatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := validation.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	resp, err := h.agent.HandleMessage(r.Context(), validation.SanitizeText(req.Content))
	if err != nil {
		h.respondAIError(w, r, "chat_failed", err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ResetSession drops the caller's conversation memory. It is idempotent.
func (h *ChatHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	existed := h.agent.ResetSession(r.Context())
	h.logger.Debug("chat_session_reset",
		zap.String("session_id", logger.SanitizeSessionID(request.SessionID(r.Context()))),
		zap.Bool("existed", existed))
	w.WriteHeader(http.StatusNoContent)
}

// Enhance personalizes a template for a user profile
func (h *ChatHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req EnhanceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if len(req.Template) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Missing template.")
		return
	}

	doc, err := h.agent.Enhance(r.Context(), req.Template, req.UserProfile)
	if err != nil {
		h.respondAIError(w, r, "enhance_failed", err)
		return
	}

	respondJSON(w, http.StatusOK, EnhanceResponse{Enhanced: doc})
}

func (h *ChatHandler) respondAIError(w http.ResponseWriter, r *http.Request, event string, err error) {
	fields := []zap.Field{
		zap.String("request_id", request.RequestID(r.Context())),
		logger.Err(err),
	}

	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "AI features are not configured")
	case ai.IsQuotaError(err) || ai.IsRateLimitError(err):
		h.logger.Warn(event, fields...)
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "AI provider is rate limited, try again later")
	case errors.Is(err, ai.ErrNoJSON) || errors.Is(err, ai.ErrEmptyResponse) || document.IsStructural(err):
		h.logger.Warn(event, fields...)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Invalid JSON returned")
	default:
		h.logger.Error(event, fields...)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get AI response")
	}
}
