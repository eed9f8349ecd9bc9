// Package request carries per-request values through contexts.
package request

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
	sessionIDContextKey contextKey = "session_id"
)

// SessionHeader carries the chat session a request belongs to
const SessionHeader = "X-Session-ID"

// DefaultSessionID is used when a client sends no session header, so all such
// clients share one conversation.
const DefaultSessionID = "default"

// maxSessionIDLength bounds client supplied session identifiers
const maxSessionIDLength = 128

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestID returns the request ID from the context, or "" if missing or wrong type.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// WithSessionID returns a context carrying the chat session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, id)
}

// SessionID returns the chat session from the context, falling back to DefaultSessionID.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDContextKey).(string); ok && id != "" {
		return id
	}
	return DefaultSessionID
}

// SessionFromHeader reads the session header, trimmed and length capped.
func SessionFromHeader(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		return DefaultSessionID
	}
	if len(id) > maxSessionIDLength {
		id = id[:maxSessionIDLength]
	}
	return id
}
