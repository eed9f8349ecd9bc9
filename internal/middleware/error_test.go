package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   string
		wantLogged bool
		wantJSON   bool
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"files":[]}`))
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"files":[]}`,
		},
		{
			name: "panic with string",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("normalizer exploded")
			},
			wantStatus: http.StatusInternalServerError,
			wantLogged: true,
			wantJSON:   true,
		},
		{
			name: "runtime error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var m map[string]any
				m["name"] = "Plan"
			},
			wantStatus: http.StatusInternalServerError,
			wantLogged: true,
			wantJSON:   true,
		},
		{
			name: "panic after response started",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("late failure")
			},
			wantStatus: http.StatusAccepted,
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.ErrorLevel)
			h := ErrorHandler(zap.New(core))(tt.handler)

			rr := httptest.NewRecorder()
			require.NotPanics(t, func() {
				h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/files", nil))
			})

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rr.Body.String())
			}

			recovered := logs.FilterMessage("panic_recovered")
			if !tt.wantLogged {
				assert.Zero(t, recovered.Len())
				return
			}
			require.Equal(t, 1, recovered.Len())
			assert.Equal(t, "/files", recovered.All()[0].ContextMap()["path"])

			if tt.wantJSON {
				assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
				var body ErrorResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
				assert.False(t, body.Success)
				assert.Equal(t, "Internal Server Error", body.Error)
				assert.Equal(t, "An unexpected error occurred", body.Message)
				assert.NotEmpty(t, body.Timestamp)
			} else {
				assert.Empty(t, rr.Body.String())
			}
		})
	}
}

func TestErrorHandler_AbortHandlerPropagates(t *testing.T) {
	t.Parallel()

	h := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
