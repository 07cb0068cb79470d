// Package metrics counts the best-effort operations whose failures are never
// shown to the user.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "swimlane"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	writes        *prometheus.CounterVec
	refetches     *prometheus.CounterVec
	snapshotSaves *prometheus.CounterVec
	dropsIgnored  prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Writes issued to the remote task table, by operation and result.",
		}, []string{"op", "result"}),
		refetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refetches_total",
			Help:      "Full board reloads from the remote task table, by result.",
		}, []string{"result"}),
		snapshotSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_saves_total",
			Help:      "Local snapshot writes, by result.",
		}, []string{"result"}),
		dropsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_ignored_total",
			Help:      "Drops discarded because the drag payload was malformed.",
		}),
	}
	reg.MustRegister(m.writes, m.refetches, m.snapshotSaves, m.dropsIgnored)
	return m
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *Metrics) Write(op string, err error) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) Refetch(err error) {
	if m == nil {
		return
	}
	m.refetches.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SnapshotSave(err error) {
	if m == nil {
		return
	}
	m.snapshotSaves.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) DropIgnored() {
	if m == nil {
		return
	}
	m.dropsIgnored.Inc()
}
