package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPlan("fast", true, time.Second)
		m.RecordDayAttempt(false)
		m.RecordFallback("max_steps_exceeded")
		m.RecordLLMCall(true, time.Millisecond)
		m.RecordToolCall("add_sub_trip", true)
		m.RecordTaskEvent("submitted")
		m.SetQueueDepth(3)
		m.AddActiveWorkers(1)
	})
	assert.Nil(t, m.Registry())
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordPlan("deep", false, 2*time.Second)
	a.RecordFallback("no_progress")
	a.RecordToolCall("replace_poi", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(a.PlansTotal.WithLabelValues("deep", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.Fallbacks.WithLabelValues("no_progress")))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.ToolCalls.WithLabelValues("replace_poi", "false")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.PlansTotal.WithLabelValues("deep", "error")))
}

func TestHandlerExposesPlannerSeries(t *testing.T) {
	m := NewMetrics()
	m.RecordTaskEvent("succeeded")
	m.SetQueueDepth(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `vivuplanner_tasks_total{event="succeeded"} 1`))
	assert.True(t, strings.Contains(body, "vivuplanner_task_queue_depth 2"))
}
