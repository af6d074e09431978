package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hh_interviewer"

const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"

	OutcomeReady    = "ready"
	OutcomePending  = "pending"
	OutcomeRejected = "error"
)

var (
	rateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter admission decisions, partitioned by namespace and outcome.",
		},
		[]string{"namespace", "outcome"},
	)

	transcriptPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_polls_total",
			Help:      "Transcript source polls, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	selfHealCorrectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_heal_corrections_total",
			Help:      "Scoring fields overridden by their derived value, partitioned by field.",
		},
		[]string{"field"},
	)

	pipelinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipelines_total",
			Help:      "Finished analysis pipelines, partitioned by final phase and error kind.",
		},
		[]string{"phase", "kind"},
	)

	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_seconds",
			Help:      "Analysis pipeline latency in seconds.",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90, 120, 180, 300},
		},
	)
)

// Register attaches collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		rateLimitDecisionsTotal,
		transcriptPollsTotal,
		selfHealCorrectionsTotal,
		pipelinesTotal,
		pipelineDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRateLimit matches the ratelimit observer signature.
func ObserveRateLimit(ns string, allowed bool) {
	outcome := OutcomeDenied
	if allowed {
		outcome = OutcomeAllowed
	}
	rateLimitDecisionsTotal.WithLabelValues(ns, outcome).Inc()
}

func ObserveTranscriptPoll(outcome string) {
	transcriptPollsTotal.WithLabelValues(outcome).Inc()
}

func ObserveCorrection(field string) {
	selfHealCorrectionsTotal.WithLabelValues(field).Inc()
}

// ObservePipeline records the final phase of a pipeline and its duration.
// kind is empty for successful runs.
func ObservePipeline(duration time.Duration, phase, kind string) {
	if kind == "" {
		kind = "none"
	}
	pipelinesTotal.WithLabelValues(phase, kind).Inc()
	if duration < 0 {
		duration = 0
	}
	pipelineDurationSeconds.Observe(duration.Seconds())
}
