package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics holds the import and query path counters.
type Metrics struct {
	RowsImported   *prometheus.CounterVec
	RowsFailed     *prometheus.CounterVec
	RowsSkipped    *prometheus.CounterVec
	RunsCompleted  *prometheus.CounterVec
	RunsFailed     *prometheus.CounterVec
	RunsSkipped    *prometheus.CounterVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	AggregateCalls prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		RowsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costwatch_rows_imported_total",
			Help: "Line items committed per source.",
		}, []string{"source"}),
		RowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costwatch_rows_failed_total",
			Help: "Rows rejected by validation per source.",
		}, []string{"source"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costwatch_rows_skipped_total",
			Help: "Duplicate rows skipped per source.",
		}, []string{"source"}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costwatch_runs_completed_total",
			Help: "Import runs finished with a complete snapshot.",
		}, []string{"source"}),
		RunsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costwatch_runs_failed_total",
			Help: "Import runs aborted with a failed snapshot.",
		}, []string{"source"}),
		RunsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costwatch_runs_skipped_total",
			Help: "Runs skipped because the run id was already imported.",
		}, []string{"source"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costwatch_query_cache_hits_total",
			Help: "Aggregation responses served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costwatch_query_cache_misses_total",
			Help: "Aggregation requests that missed the cache.",
		}),
		AggregateCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costwatch_aggregate_requests_total",
			Help: "Aggregation requests served.",
		}),
	}

	prometheus.MustRegister(
		m.RowsImported,
		m.RowsFailed,
		m.RowsSkipped,
		m.RunsCompleted,
		m.RunsFailed,
		m.RunsSkipped,
		m.CacheHits,
		m.CacheMisses,
		m.AggregateCalls,
	)

	return m
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
