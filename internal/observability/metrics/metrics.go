// Package metrics exposes the studio's Prometheus collectors: HTTP traffic,
// outbound agent calls and generation job outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studio"

// Outcome labels for agent calls.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "status_error"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
)

// AgentOther 是无法识别的 agent id 统一使用的标签值，保证时间序列数量有界。
const AgentOther = "other"

// Registry holds every studio collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, []string{"handler", "method", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"handler", "method"})

	agentCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_calls_total",
		Help:      "Outbound agent calls by agent kind and outcome.",
	}, []string{"agent", "outcome"})

	agentDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "agent_call_duration_seconds",
		Help:      "Latency of outbound agent calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"agent"})

	jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Generation jobs that reached a terminal status.",
	}, []string{"status"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		agentCalls,
		agentDuration,
		jobsFinished,
	)
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveAgentCall records one outbound agent call. agent must come from a
// bounded set (an agent kind or AgentOther); an empty value counts as AgentOther.
func ObserveAgentCall(agent, outcome string, duration time.Duration) {
	if agent == "" {
		agent = AgentOther
	}
	agentCalls.WithLabelValues(agent, outcome).Inc()
	if outcome != OutcomeRejected {
		agentDuration.WithLabelValues(agent).Observe(duration.Seconds())
	}
}

// ObserveJobFinished records a job reaching status.
func ObserveJobFinished(status string) {
	jobsFinished.WithLabelValues(status).Inc()
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
