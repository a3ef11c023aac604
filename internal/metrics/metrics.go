// Package metrics registers the operational Prometheus vectors for a
// compute node: cache hit/miss ratio, single-flight contention, CTT poll
// counts, and bulk-staging timeouts/retries. Grounded on
// internal/escrow/metrics.go's promauto-vector-per-concern shape.
//
// Non-goals in spec.md (admission control, quota, auth, cross-node cache
// sharing) bound functionality, not observability — this package is
// carried regardless of which features a given Non-goal excludes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus vector a compute node exposes. A nil
// *Metrics is a valid, inert receiver for every Record*/Set* method below,
// so wiring metrics is always optional for callers (e.g. dispatch workers
// constructed directly in tests never set a Dispatcher.Metrics field).
type Metrics struct {
	CacheLookups      *prometheus.CounterVec
	SingleFlightWaits *prometheus.CounterVec
	BulkStageTimeouts *prometheus.CounterVec
	CTTPolls          *prometheus.HistogramVec
	SessionsActive    *prometheus.GaugeVec
}

// New registers and returns a fresh set of vectors against reg. Tests that
// want an isolated registry (to avoid promauto's default global registry
// panicking on repeated registration across test cases) should pass their
// own prometheus.NewRegistry(); cmd/*-cn binaries also pass a fresh
// prometheus.NewRegistry(), which their admin server's /metrics serves.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reuse_edge_cache_lookups_total",
			Help: "Reuse-cache lookups by flavour and outcome",
		}, []string{"flavor", "result"}), // result: hit, miss

		SingleFlightWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reuse_edge_singleflight_waits_total",
			Help: "Sessions that found a fingerprint already in flight and waited for it",
		}, []string{"flavor"}),

		BulkStageTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reuse_edge_bulkstage_timeouts_total",
			Help: "Bulk-staging row-range interests that timed out and were reissued with a new version",
		}, []string{"kind"}),

		CTTPolls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reuse_edge_ctt_poll_count",
			Help:    "Poll count (n in the CTT formula) observed per reply",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}, []string{"verb"}),

		SessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reuse_edge_sessions_active",
			Help: "Currently tracked sessions, snapshotted by the admin server",
		}, []string{"state"}),
	}
}

// RecordCacheLookup tallies one reuse-cache lookup for flavor ("chess" or
// "matrix"; the camera flavour has no shared fingerprint table, so it never
// calls this).
func (m *Metrics) RecordCacheLookup(flavor string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(flavor, result).Inc()
}

// RecordSingleFlightWait tallies a session that arrived while flavor's
// fingerprint was already in flight (spec.md §4.2's wait_to_grab path).
func (m *Metrics) RecordSingleFlightWait(flavor string) {
	if m == nil {
		return
	}
	m.SingleFlightWaits.WithLabelValues(flavor).Inc()
}

// RecordBulkStageTimeout tallies one row-range reissue for kind ("matrix"
// or "detectfaces", matching bulkstage.KindMatrix/KindCamera).
func (m *Metrics) RecordBulkStageTimeout(kind string) {
	if m == nil {
		return
	}
	m.BulkStageTimeouts.WithLabelValues(kind).Inc()
}

// RecordPoll observes the poll count n reported in a CTT reply for verb.
func (m *Metrics) RecordPoll(verb string, n int) {
	if m == nil {
		return
	}
	m.CTTPolls.WithLabelValues(verb).Observe(float64(n))
}

// SetActiveSessions sets the active-session gauge for state, called
// periodically by internal/adminserver from a session.Manager.Snapshot().
func (m *Metrics) SetActiveSessions(state string, n int) {
	if m == nil {
		return
	}
	m.SessionsActive.WithLabelValues(state).Set(float64(n))
}
