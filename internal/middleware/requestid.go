package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/benvon/smart-docs/internal/request"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// RequestContext stores the request ID and chat session in the request
// context. A client supplied request ID is kept when it is short and
// printable; otherwise a new UUID is issued.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := request.WithRequestID(r.Context(), id)
		ctx = request.WithSessionID(ctx, request.SessionFromHeader(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
