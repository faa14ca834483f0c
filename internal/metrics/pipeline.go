package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion pipeline Prometheus metrics.
var (
	RecordsFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termwatch",
			Name:      "records_fetched_total",
			Help:      "Total records retrieved from the remote search platform",
		},
	)

	RecordsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termwatch",
			Name:      "records_processed_total",
			Help:      "Total records run through term detection",
		},
		[]string{"trigger"}, // "scheduled" / "manual" / "webhook"
	)

	DetectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termwatch",
			Name:      "detections_total",
			Help:      "Total queries with at least one term above threshold",
		},
	)

	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termwatch",
			Name:      "exports_total",
			Help:      "Total event deliveries to the collector",
		},
		[]string{"status"}, // "success" / "failure" / "disabled"
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "termwatch",
			Name:      "cycle_duration_seconds",
			Help:      "Full ingestion cycle duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480},
		},
	)

	CyclesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termwatch",
			Name:      "cycles_skipped_total",
			Help:      "Scheduled cycles skipped because a prior run was still in flight",
		},
	)
)

// RegisterPipelineMetrics registers pipeline metrics with the default registry.
// Called explicitly from main (no init()).
func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		RecordsFetchedTotal,
		RecordsProcessedTotal,
		DetectionsTotal,
		ExportsTotal,
		CycleDuration,
		CyclesSkippedTotal,
	)
}
