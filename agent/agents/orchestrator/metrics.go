package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
)

var (
	loopSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "claims_loop_steps",
		Help:    "Planner steps taken by completed conversations.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 25},
	})

	conversationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_conversation_outcomes_total",
		Help: "Ticket turns by final status and error code.",
	}, []string{"status", "code"})

	conversationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "claims_conversation_duration_seconds",
		Help:    "Wall time of one ticket turn.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)

func observeOutcome(out contractx.Outcome) {
	status := string(out.Status)
	if status == "" {
		status = "rejected"
	}
	conversationOutcomes.WithLabelValues(status, out.Code).Inc()
	conversationDuration.Observe(out.Duration.Seconds())
}
