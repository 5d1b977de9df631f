// Package telemetry holds the planner's Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vivuplanner"

// Metrics is constructed once per process and passed to the components that record into it.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PlansTotal    *prometheus.CounterVec
	PlanDuration  *prometheus.HistogramVec
	DayAttempts   *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	LLMCalls      *prometheus.CounterVec
	LLMLatency    prometheus.Histogram
	ToolCalls     *prometheus.CounterVec
	TasksTotal    *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	ActiveWorkers prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PlansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Plans produced by the orchestrator",
		}, []string{"mode", "status"}),
		PlanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "End-to-end plan latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		DayAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deep_day_attempts_total",
			Help:      "Deep planner day attempts by outcome",
		}, []string{"outcome"}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deep_fallbacks_total",
			Help:      "Deep runs replaced by a fast plan",
		}, []string{"reason"}),
		LLMCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Chat calls to the language model",
		}, []string{"status"}),
		LLMLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Chat call latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_tool_calls_total",
			Help:      "Mutation tool invocations",
		}, []string{"tool", "ok"}),
		TasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task lifecycle events",
		}, []string{"event"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Task ids waiting in the worker queue",
		}),
		ActiveWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_active_workers",
			Help:      "Workers currently executing a task",
		}),
	}
}

// Handler serves this registry on /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordPlan(mode string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.PlansTotal.WithLabelValues(mode, status(ok)).Inc()
	m.PlanDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) RecordDayAttempt(ok bool) {
	if m == nil {
		return
	}
	m.DayAttempts.WithLabelValues(status(ok)).Inc()
}

func (m *Metrics) RecordFallback(reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordLLMCall(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(status(ok)).Inc()
	m.LLMLatency.Observe(d.Seconds())
}

func (m *Metrics) RecordToolCall(tool string, ok bool) {
	if m == nil {
		return
	}
	label := "false"
	if ok {
		label = "true"
	}
	m.ToolCalls.WithLabelValues(tool, label).Inc()
}

func (m *Metrics) RecordTaskEvent(event string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) AddActiveWorkers(delta int) {
	if m == nil {
		return
	}
	m.ActiveWorkers.Add(float64(delta))
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
