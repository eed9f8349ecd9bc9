package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repairKind string

func TestObserveDocument(t *testing.T) {
	before := testutil.ToFloat64(repairsCounter.WithLabelValues("row_dropped"))
	repairedBefore := testutil.ToFloat64(documentsCounter.WithLabelValues("table", "repaired"))
	canonicalBefore := testutil.ToFloat64(documentsCounter.WithLabelValues("todolist", "canonical"))

	ObserveDocument("table", map[repairKind]int{"row_dropped": 2, "cell_coerced": 0})
	ObserveDocument[repairKind]("todolist", nil)

	assert.Equal(t, before+2, testutil.ToFloat64(repairsCounter.WithLabelValues("row_dropped")))
	assert.Equal(t, repairedBefore+1, testutil.ToFloat64(documentsCounter.WithLabelValues("table", "repaired")))
	assert.Equal(t, canonicalBefore+1, testutil.ToFloat64(documentsCounter.WithLabelValues("todolist", "canonical")))
}

func TestObserveLLMCall(t *testing.T) {
	okBefore := testutil.ToFloat64(llmRequestsCounter.WithLabelValues("fake", "chat", "ok"))
	errBefore := testutil.ToFloat64(llmRequestsCounter.WithLabelValues("fake", "chat", "error"))

	ObserveLLMCall("fake", "chat", 10*time.Millisecond, nil)
	ObserveLLMCall("fake", "chat", 10*time.Millisecond, errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(llmRequestsCounter.WithLabelValues("fake", "chat", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(llmRequestsCounter.WithLabelValues("fake", "chat", "error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveToolCall("list_files", "ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smart_docs_agent_tool_calls_total")
}
