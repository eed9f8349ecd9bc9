package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	checkHealthy       = "healthy"
	checkNotConfigured = "not configured"
	checkNotLoaded     = "not loaded"

	healthCheckTimeout = 5 * time.Second
)

// Pinger is anything whose availability can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}

// queueChecker is the health side of a job queue
type queueChecker interface {
	HealthCheck(ctx context.Context) error
}

// readinessChecker is the health side of the recommender
type readinessChecker interface {
	Ready() error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	store       Pinger
	redis       *redis.Client
	queue       queueChecker
	recommender readinessChecker
	version     string
}

// HealthOption configures a HealthChecker
type HealthOption func(*HealthChecker)

// WithRedis adds the rate limit store to extended checks
func WithRedis(client *redis.Client) HealthOption {
	return func(h *HealthChecker) {
		h.redis = client
	}
}

// WithQueue adds the job queue to extended checks
func WithQueue(q queueChecker) HealthOption {
	return func(h *HealthChecker) {
		h.queue = q
	}
}

// WithRecommender adds the recommendation model to extended checks
func WithRecommender(r readinessChecker) HealthOption {
	return func(h *HealthChecker) {
		h.recommender = r
	}
}

// WithVersion sets the version reported by /version
func WithVersion(v string) HealthOption {
	return func(h *HealthChecker) {
		if v != "" {
			h.version = v
		}
	}
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(store Pinger, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{store: store, version: "dev"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the version response
type VersionResponse struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Timestamp string `json:"timestamp"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") != "extended" {
		respondJSON(w, http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"store": probe(ctx, h.store),
		"redis": checkNotConfigured,
		"queue": checkNotConfigured,
		"model": checkNotConfigured,
	}
	if h.redis != nil {
		checks["redis"] = probe(ctx, redisPinger{h.redis})
	}
	if h.queue != nil {
		checks["queue"] = result(h.queue.HealthCheck(ctx))
	}
	if h.recommender != nil {
		checks["model"] = checkHealthy
		if err := h.recommender.Ready(); err != nil {
			checks["model"] = checkNotLoaded
		}
	}
	response.Checks = checks

	// a missing model only disables recommendations
	statusCode := http.StatusOK
	for name, check := range checks {
		if name == "model" || check == checkHealthy || check == checkNotConfigured {
			continue
		}
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, response)
}

// Version handles the /version endpoint
func (h *HealthChecker) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, VersionResponse{
		Version:   h.version,
		GoVersion: runtime.Version(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return checkNotConfigured
	}
	return result(p.Ping(ctx))
}

func result(err error) string {
	if err != nil {
		return "unhealthy: " + sanitizeErrorMessage(err.Error())
	}
	return checkHealthy
}
