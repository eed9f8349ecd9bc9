package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/queue"
	"github.com/benvon/smart-docs/internal/services/recommend"
	"github.com/benvon/smart-docs/internal/store"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func healthz(t *testing.T, h *HealthChecker, query string) (int, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz"+query, nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealthChecker_BasicMode(t *testing.T) {
	t.Parallel()

	// basic mode never probes dependencies
	h := NewHealthChecker(stubPinger{err: errors.New("disk gone")})
	code, resp := healthz(t, h, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.Checks)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealthChecker_ExtendedMode(t *testing.T) {
	t.Parallel()

	fs, err := store.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewMemoryQueue(4)
	t.Cleanup(func() { _ = q.Close() })

	h := NewHealthChecker(fs,
		WithRedis(client),
		WithQueue(q),
		WithRecommender(recommend.New(nil, nil, nil, nil)))

	code, resp := healthz(t, h, "?mode=extended")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{
		"store": "healthy",
		"redis": "healthy",
		"queue": "healthy",
		"model": "not loaded",
	}, resp.Checks)
}

func TestHealthChecker_ExtendedMode_NotConfigured(t *testing.T) {
	t.Parallel()

	code, resp := healthz(t, NewHealthChecker(stubPinger{}), "?mode=extended")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not configured", resp.Checks["redis"])
	assert.Equal(t, "not configured", resp.Checks["queue"])
	assert.Equal(t, "not configured", resp.Checks["model"])
}

func TestHealthChecker_ExtendedMode_Unhealthy(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue(1)
	require.NoError(t, q.Close())

	h := NewHealthChecker(stubPinger{err: errors.New("store directory unavailable")}, WithQueue(q))
	code, resp := healthz(t, h, "?mode=extended")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.True(t, strings.HasPrefix(resp.Checks["store"], "unhealthy: "), resp.Checks["store"])
	assert.True(t, strings.HasPrefix(resp.Checks["queue"], "unhealthy: "), resp.Checks["queue"])
}

func TestHealthChecker_Version(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewHealthChecker(nil, WithVersion("1.4.2")).Version(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1.4.2", resp.Version)
	assert.NotEmpty(t, resp.GoVersion)

	w = httptest.NewRecorder()
	NewHealthChecker(nil, WithVersion("")).Version(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dev", resp.Version)
}
