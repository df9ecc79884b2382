package tool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_tool_calls_total",
		Help: "Tool calls by tool and outcome",
	}, []string{"tool", "outcome"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claims_tool_call_duration_seconds",
		Help:    "Tool call latency including retries",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"tool"})

	dispatchTiers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "claims_dispatch_tiers",
		Help:    "Dependency tiers executed per dispatch",
		Buckets: []float64{1, 2, 3, 4, 5},
	})
)
