package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the tracker's Prometheus collectors
type Metrics struct {
	fetchesTotal        *prometheus.CounterVec
	rawEntriesTotal     prometheus.Counter
	snapshotsTotal      prometheus.Counter
	normalizerRunsTotal *prometheus.CounterVec
	cursorPosition      prometheus.Gauge
	statsCacheHits      prometheus.Counter
	statsCacheMisses    prometheus.Counter
}

// New registers the tracker collectors on the default registry
func New() *Metrics {
	return &Metrics{
		fetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tnt_fetches_total",
			Help: "Upstream team fetch attempts by outcome",
		}, []string{"team", "outcome"}),

		rawEntriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tnt_raw_entries_total",
			Help: "Raw payloads appended to the raw store",
		}),

		snapshotsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tnt_normalized_snapshots_total",
			Help: "Normalized player snapshots written",
		}),

		normalizerRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tnt_normalizer_runs_total",
			Help: "Normalizer runs by outcome",
		}, []string{"outcome"}),

		cursorPosition: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tnt_processing_cursor",
			Help: "Last raw entry id processed by the normalizer",
		}),

		statsCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tnt_stats_cache_hits_total",
			Help: "Statistics responses served from cache",
		}),

		statsCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tnt_stats_cache_misses_total",
			Help: "Statistics responses computed from the database",
		}),
	}
}

func (m *Metrics) IncFetch(team, outcome string) {
	m.fetchesTotal.WithLabelValues(team, outcome).Inc()
}

func (m *Metrics) IncRawEntries() {
	m.rawEntriesTotal.Inc()
}

func (m *Metrics) AddSnapshots(n int) {
	m.snapshotsTotal.Add(float64(n))
}

func (m *Metrics) IncNormalizerRun(outcome string) {
	m.normalizerRunsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetCursor(id int64) {
	m.cursorPosition.Set(float64(id))
}

func (m *Metrics) IncStatsCacheHit() {
	m.statsCacheHits.Inc()
}

func (m *Metrics) IncStatsCacheMiss() {
	m.statsCacheMisses.Inc()
}

// Nop returns a metrics bundle that records nothing; used by tests so
// collectors are not double-registered on the default registry.
func Nop() *Metrics {
	return &Metrics{
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tnt_fetches_total_nop",
		}, []string{"team", "outcome"}),
		rawEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{Name: "tnt_raw_entries_total_nop"}),
		snapshotsTotal:  prometheus.NewCounter(prometheus.CounterOpts{Name: "tnt_normalized_snapshots_total_nop"}),
		normalizerRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tnt_normalizer_runs_total_nop",
		}, []string{"outcome"}),
		cursorPosition:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "tnt_processing_cursor_nop"}),
		statsCacheHits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "tnt_stats_cache_hits_total_nop"}),
		statsCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{Name: "tnt_stats_cache_misses_total_nop"}),
	}
}
