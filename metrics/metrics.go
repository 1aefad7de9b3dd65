// Package metrics provides Prometheus metrics for the mixer, sessions and clip storage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: role, kind, operation. Never clip keys or URLs.

var (
	// TracksStartedTotal counts sources that started playing, by channel role.
	TracksStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixdeck_tracks_started_total",
		Help: "Total number of tracks that started playing, by channel role.",
	}, []string{"role"})

	// TracksEndedTotal counts tracks that ran to their natural end, by channel role.
	TracksEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixdeck_tracks_ended_total",
		Help: "Total number of tracks that completed naturally, by channel role.",
	}, []string{"role"})

	// TrackLoadFailuresTotal counts failed loads by role and failure kind (fetch/decode).
	TrackLoadFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixdeck_track_load_failures_total",
		Help: "Total number of track loads that failed, by channel role and kind.",
	}, []string{"role", "kind"})

	// SessionsStartedTotal counts play sessions.
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixdeck_sessions_started_total",
		Help: "Total number of play sessions started.",
	})

	// SessionActive is 1 while a play session is running.
	SessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixdeck_session_active",
		Help: "Whether a play session is currently running (0 or 1).",
	})

	// PoolSize tracks the number of clips in each pool.
	PoolSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixdeck_pool_size",
		Help: "Number of clips in the pool, by role.",
	}, []string{"role"})

	// StorageOpsTotal counts object store calls by operation and result.
	StorageOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixdeck_storage_ops_total",
		Help: "Total number of object store operations, by operation and result (ok/error).",
	}, []string{"op", "result"})
)

// RecordTrackStarted increments the started counter for role.
func RecordTrackStarted(role string) {
	TracksStartedTotal.WithLabelValues(role).Inc()
}

// RecordTrackEnded increments the natural-end counter for role.
func RecordTrackEnded(role string) {
	TracksEndedTotal.WithLabelValues(role).Inc()
}

// RecordLoadFailure increments the load failure counter.
func RecordLoadFailure(role, kind string) {
	TrackLoadFailuresTotal.WithLabelValues(role, kind).Inc()
}

// RecordSessionStart marks a session as started.
func RecordSessionStart() {
	SessionsStartedTotal.Inc()
	SessionActive.Set(1)
}

// RecordSessionStop marks the session as stopped.
func RecordSessionStop() {
	SessionActive.Set(0)
}

// SetPoolSize records the pool size for role.
func SetPoolSize(role string, n int) {
	PoolSize.WithLabelValues(role).Set(float64(n))
}

// RecordStorageOp records the outcome of an object store call.
func RecordStorageOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StorageOpsTotal.WithLabelValues(op, result).Inc()
}
