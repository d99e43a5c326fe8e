// Package metrics defines Prometheus metrics for chartedroots.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GraphLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chartedroots_graph_load_duration_seconds",
			Help:    "Time spent building the person graph from the vault",
			Buckets: prometheus.DefBuckets,
		},
	)

	GraphPeople = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chartedroots_graph_people",
			Help: "People in the most recently loaded graph",
		},
	)

	GraphInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartedroots_graph_invalidations_total",
			Help: "Total graph cache invalidations",
		},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartedroots_mutations_total",
			Help: "Relationship mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	DuplicatePairsCompared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartedroots_duplicate_pairs_compared_total",
			Help: "Total person pairs compared by the duplicate matcher",
		},
	)

	DuplicateScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chartedroots_duplicate_scan_duration_seconds",
			Help:    "Duplicate scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GedcomLinesParsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartedroots_gedcom_lines_parsed_total",
			Help: "Total GEDCOM lines parsed",
		},
	)

	IndexSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartedroots_index_sync_people_total",
			Help: "People processed by index sync by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		GraphLoadDuration, GraphPeople, GraphInvalidations,
		MutationsTotal,
		DuplicatePairsCompared, DuplicateScanDuration,
		GedcomLinesParsed,
		IndexSyncTotal,
	)
}
