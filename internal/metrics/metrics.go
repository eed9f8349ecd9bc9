// Package metrics holds the prometheus collectors shared by the server and the worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smart_docs"

var (
	documentsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "normalizer",
		Name:      "documents_total",
		Help:      "Documents passed through the normalizer, by kind and outcome (canonical, repaired, rejected).",
	}, []string{"kind", "outcome"})

	repairsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "normalizer",
		Name:      "repairs_total",
		Help:      "Silent repairs applied to candidate documents, by repair kind.",
	}, []string{"repair"})

	toolCallsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "tool_calls_total",
		Help:      "Tool invocations chosen by the assistant, by tool and result status.",
	}, []string{"tool", "status"})

	llmRequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Model calls by provider, operation and result.",
	}, []string{"provider", "operation", "result"})

	llmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Latency of model calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"provider", "operation"})

	httpRequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route template and status code.",
	}, []string{"method", "route", "code"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route template.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	jobsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_total",
		Help:      "Background jobs handled, by job type and result (done, retried, failed).",
	}, []string{"type", "result"})

	recommendationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recommender",
		Name:      "requests_total",
		Help:      "Recommendation requests by mode and cluster outcome.",
	}, []string{"mode", "outcome"})
)

func init() {
	prometheus.MustRegister(
		documentsCounter,
		repairsCounter,
		toolCallsCounter,
		llmRequestsCounter,
		llmLatency,
		httpRequestsCounter,
		httpLatency,
		jobsCounter,
		recommendationsCounter,
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDocument records one normalization. repairs maps repair kinds to counts.
func ObserveDocument[K ~string](kind string, repairs map[K]int) {
	outcome := "canonical"
	for repair, n := range repairs {
		if n <= 0 {
			continue
		}
		outcome = "repaired"
		repairsCounter.WithLabelValues(string(repair)).Add(float64(n))
	}
	documentsCounter.WithLabelValues(labelOr(kind, "unknown"), outcome).Inc()
}

// ObserveRejected records a candidate refused as structurally invalid
func ObserveRejected() {
	documentsCounter.WithLabelValues("unknown", "rejected").Inc()
}

// ObserveToolCall records one dispatched tool
func ObserveToolCall(tool, status string) {
	toolCallsCounter.WithLabelValues(tool, labelOr(status, "unknown")).Inc()
}

// ObserveLLMCall records one model call
func ObserveLLMCall(provider, operation string, latency time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operation = labelOr(operation, "unknown")
	llmRequestsCounter.WithLabelValues(provider, operation, result).Inc()
	llmLatency.WithLabelValues(provider, operation).Observe(latency.Seconds())
}

// ObserveHTTP records one served request
func ObserveHTTP(method, route string, status int, latency time.Duration) {
	route = labelOr(route, "unmatched")
	httpRequestsCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// ObserveJob records one processed background job
func ObserveJob(jobType, result string) {
	jobsCounter.WithLabelValues(jobType, result).Inc()
}

// ObserveRecommendation records one recommendation request
func ObserveRecommendation(mode, outcome string) {
	recommendationsCounter.WithLabelValues(mode, outcome).Inc()
}

func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
