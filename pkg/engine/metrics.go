package engine

import (
	"github.com/agubarev/chapi/pkg/fault"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of the engine, a nil *Metrics records nothing
type Metrics struct {
	Operations        *prometheus.CounterVec
	CounterpartWrites *prometheus.CounterVec
	SyncFailures      *prometheus.CounterVec
}

// NewMetrics creates the engine metrics and registers them with reg,
// a nil registerer leaves them unregistered
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chapi",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Number of engine operations by entity kind, operation and outcome.",
		}, []string{"kind", "operation", "result"}),
		CounterpartWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chapi",
			Subsystem: "engine",
			Name:      "counterpart_writes_total",
			Help:      "Number of back-reference writes issued during synchronization.",
		}, []string{"kind"}),
		SyncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chapi",
			Subsystem: "engine",
			Name:      "sync_failures_total",
			Help:      "Number of failed back-reference writes.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.Operations, m.CounterpartWrites, m.SyncFailures)
	}

	return m
}

func result(err error) string {
	if err == nil {
		return "ok"
	}

	switch fault.KindOf(err) {
	case fault.KBadRequest:
		return "bad_request"
	case fault.KNotFound:
		return "not_found"
	case fault.KConflict:
		return "conflict"
	}

	return "error"
}

func (m *Metrics) operation(kind, op string, err error) {
	if m == nil {
		return
	}

	m.Operations.WithLabelValues(kind, op, result(err)).Inc()
}

func (m *Metrics) counterpartWrite(kind string, err error) {
	if m == nil {
		return
	}

	if err != nil {
		m.SyncFailures.WithLabelValues(kind).Inc()
		return
	}

	m.CounterpartWrites.WithLabelValues(kind).Inc()
}
