package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/quality"
	"github.com/polematch/internal/span"
)

var (
	// matchesTotal counts accepted matches by cascade stage
	matchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polematch",
		Name:      "matches_total",
		Help:      "Accepted pole matches by stage",
	}, []string{"stage"})

	// unmatchedTotal counts poles left unmatched by source
	unmatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polematch",
		Name:      "unmatched_total",
		Help:      "Poles left unmatched by source",
	}, []string{"source"})

	// issuesTotal counts data-quality issues by kind
	issuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polematch",
		Name:      "issues_total",
		Help:      "Data-quality issues by kind",
	}, []string{"kind"})

	aggregatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "polematch",
		Name:      "span_aggregates_total",
		Help:      "Span wire aggregates produced",
	})

	// operationDuration tracks engine operation latency
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "polematch",
		Name:      "operation_duration_seconds",
		Help:      "Engine operation duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"operation"})
)

func observeCorrelation(res correlate.Result) {
	for stage, n := range res.Stats.ByStage {
		matchesTotal.WithLabelValues(string(stage)).Add(float64(n))
	}
	unmatchedTotal.WithLabelValues("A").Add(float64(res.Stats.UnmatchedA))
	unmatchedTotal.WithLabelValues("B").Add(float64(res.Stats.UnmatchedB))
	observeIssues(res.Warnings)
}

func observeSpans(res span.Result) {
	aggregatesTotal.Add(float64(len(res.Aggregates)))
	observeIssues(res.Issues)
}

func observeIssues(issues []quality.Issue) {
	for kind, n := range quality.Count(issues) {
		issuesTotal.WithLabelValues(string(kind)).Add(float64(n))
	}
}
