package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	scansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scanstation",
			Name:      "scans_total",
			Help:      "Completed barcode scans fed into ingestion.",
		},
	)

	checkinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scanstation",
			Name:      "checkins_total",
			Help:      "Ingestion outcomes by kind.",
		},
		[]string{"outcome"},
	)

	syncPassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scanstation",
			Name:      "sync_passes_total",
			Help:      "Completed sync passes over the outbox.",
		},
	)

	outboxDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scanstation",
			Name:      "outbox_depth",
			Help:      "Queued check-ins awaiting delivery.",
		},
	)
)

// Outcome labels for checkins_total.
const (
	OutcomeDelivered = "delivered"
	OutcomeQueued    = "queued"
	OutcomeRejected  = "rejected"
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(scansTotal, checkinsTotal, syncPassesTotal, outboxDepth)
	})
}

// IncScan counts one completed scan.
func IncScan() {
	scansTotal.Inc()
}

// IncCheckin counts one ingestion outcome.
func IncCheckin(outcome string) {
	checkinsTotal.WithLabelValues(outcome).Inc()
}

// IncSyncPass counts one finished sync pass.
func IncSyncPass() {
	syncPassesTotal.Inc()
}

// SetOutboxDepth records the current queue length.
func SetOutboxDepth(n int) {
	outboxDepth.Set(float64(n))
}
