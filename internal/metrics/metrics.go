// Package metrics holds the Prometheus collectors of the extraction service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	extractRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Subsystem: "extract",
			Name:      "requests_total",
			Help:      "The total number of extraction requests by input mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	extractDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invoice",
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "End to end extraction latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"mode"},
	)
	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "The total number of model calls by provider, purpose and result.",
		},
		[]string{"provider", "purpose", "result"},
	)
	reconcileActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Subsystem: "reconcile",
			Name:      "actions_total",
			Help:      "The total number of reconciliation corrections applied.",
		},
		[]string{"action"},
	)
	schemaDrift = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Subsystem: "extract",
			Name:      "schema_drift_total",
			Help:      "The total number of model answers that did not match the invoice schema.",
		},
		[]string{"provider"},
	)
	heuristicParses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Subsystem: "ocr",
			Name:      "heuristic_parses_total",
			Help:      "The total number of OCR texts parsed without a model call.",
		},
	)
	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Subsystem: "export",
			Name:      "workbooks_total",
			Help:      "The total number of generated workbooks by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		extractRequests,
		extractDuration,
		remoteCalls,
		reconcileActions,
		schemaDrift,
		heuristicParses,
		exports,
	)
}

// ObserveExtract records one finished extraction request
func ObserveExtract(mode, outcome string, elapsed time.Duration) {
	extractRequests.WithLabelValues(mode, outcome).Inc()
	extractDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveRemoteCall records one model call
func ObserveRemoteCall(provider, purpose, result string) {
	remoteCalls.WithLabelValues(provider, purpose, result).Inc()
}

// ObserveReconcile records one reconciliation correction
func ObserveReconcile(action string) {
	reconcileActions.WithLabelValues(action).Inc()
}

// ObserveSchemaDrift records one model answer that failed the schema check
func ObserveSchemaDrift(provider string) {
	schemaDrift.WithLabelValues(provider).Inc()
}

// ObserveHeuristicParse records one model-free OCR parse
func ObserveHeuristicParse() {
	heuristicParses.Inc()
}

// ObserveExport records one workbook generation
func ObserveExport(result string) {
	exports.WithLabelValues(result).Inc()
}
