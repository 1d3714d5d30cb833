// Package metrics exposes Prometheus counters for gateways, workflows and sockets.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlatformRequests counts website platform calls.
	// Labels: operation, status (HTTP code, or "error" for transport failures)
	PlatformRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitepilot",
			Subsystem: "platform",
			Name:      "requests_total",
			Help:      "Total number of website platform requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// PlatformRetries counts retried platform calls.
	PlatformRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitepilot",
			Subsystem: "platform",
			Name:      "retries_total",
			Help:      "Total number of website platform request retries",
		},
		[]string{"operation"},
	)

	// LLMCompletions counts completion calls.
	// Labels: result (success, error)
	LLMCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitepilot",
			Subsystem: "llm",
			Name:      "completions_total",
			Help:      "Total number of LLM completion calls",
		},
		[]string{"result"},
	)

	// LLMDuration tracks completion latency.
	LLMDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sitepilot",
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Duration of LLM completion calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	// CredentialRefreshes counts secret-store lookups for the LLM credential.
	// Labels: result (success, fallback, error)
	CredentialRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitepilot",
			Subsystem: "llm",
			Name:      "credential_refreshes_total",
			Help:      "Total number of LLM credential refreshes",
		},
		[]string{"result"},
	)

	// AIOutputFallbacks counts replies that could not be parsed and were replaced by a fallback.
	// Labels: flow (analysis, suggestions)
	AIOutputFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitepilot",
			Subsystem: "workflow",
			Name:      "ai_output_fallbacks_total",
			Help:      "Total number of malformed AI replies replaced by a fallback value",
		},
		[]string{"flow"},
	)

	// Workflows counts orchestrator runs.
	// Labels: flow, result (success, denied, error)
	Workflows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitepilot",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total number of workflow runs by flow and result",
		},
		[]string{"flow", "result"},
	)

	// SocketConnections is the number of open real-time connections.
	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sitepilot",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Number of open real-time connections",
		},
	)
)
