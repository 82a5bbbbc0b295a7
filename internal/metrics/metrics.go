package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_entries_total",
			Help: "Outbox entries by publish result",
		},
		[]string{"result"}, // published|failed
	)

	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_cycles_total",
			Help: "Relay claim/publish cycles by policy and result",
		},
		[]string{"policy", "result"}, // ok|publish_failed|empty
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_cycle_duration_seconds",
			Help:    "Duration of a single claim/publish cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EntriesTotal,
		CyclesTotal,
		CycleDuration,
	)
}
