package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondJSON_RawBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		data   any
		want   string
	}{
		{name: "document", status: http.StatusOK, data: map[string]any{"name": "Plan", "type": "todolist"}, want: `{"name":"Plan","type":"todolist"}`},
		{name: "file list", status: http.StatusOK, data: ListFilesResponse{Files: []string{"a.json", "b.json"}}, want: `{"files":["a.json","b.json"]}`},
		{name: "null", status: http.StatusCreated, data: nil, want: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rr := httptest.NewRecorder()
			respondJSON(rr, tt.status, tt.data)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rr.Body.String())
		})
	}
}

func TestRespondJSONError_Envelope(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	respondJSONError(rr, http.StatusNotFound, "Not Found", "File not found: plan.json")

	require.Equal(t, http.StatusNotFound, rr.Code)
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "File not found: plan.json", body.Message)
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
}

func TestSanitizeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "model said: no", sanitizeErrorMessage("model  said:\n\tno"))

	long := sanitizeErrorMessage("first line\nsecond line " + strings.Repeat("x", 300))
	assert.Len(t, long, maxErrorMessageLength+3)
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.NotContains(t, long, "\n")
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr string
	}{
		{name: "object", body: `{"content":"hi"}`},
		{name: "empty", body: "", wantErr: "request body is empty"},
		{name: "broken", body: `{"content":`, wantErr: "invalid JSON"},
		{name: "two values", body: `{"content":"a"} {"content":"b"}`, wantErr: "single JSON value"},
		{name: "too large", body: `{"content":"` + strings.Repeat("a", 64) + `"}`, limit: 16, wantErr: "exceeds 16 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			if tt.limit > 0 {
				req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, tt.limit)
			}

			var v ChatMessageRequest
			err := decodeJSON(req, &v)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "hi", v.Content)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// newTestRequest builds a JSON request; body is marshalled unless it is a string
func newTestRequest(method, path string, body any) *http.Request {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}
