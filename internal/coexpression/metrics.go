package coexpression

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coexp_searches_total",
		Help: "Coexpression searches by analysis path and outcome",
	}, []string{"path", "outcome"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coexp_search_duration_seconds",
		Help:    "Coexpression search latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	rowsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coexp_result_rows_total",
		Help: "Result rows emitted after filtering and deduplication",
	})

	duplicateLinksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coexp_duplicate_links_dropped_total",
		Help: "Links dropped because another link already reported the same found gene",
	})

	goLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coexp_go_overlap_lookups_total",
		Help: "GO term overlap lookups sent to the ontology store",
	})
)

// Analysis paths used as metric labels.
const (
	pathCanned = "canned"
	pathProbe  = "probe"
	pathNone   = "none"
)
