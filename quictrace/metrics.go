package quictrace

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "quictrace"

// Record results reported by Metrics.
const (
	resultDecoded   = "decoded"
	resultUnknown   = "unknown"
	resultGated     = "gated"
	resultMalformed = "malformed"
)

// Metrics exports processing counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	records   *prometheus.CounterVec
	events    *prometheus.CounterVec
	anomalies *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "Raw records processed, by decode result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Decoded events folded into the model, by category.",
		}, []string{"category"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fold_anomalies_total",
			Help:      "Events that did not match the state of their entity, by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.records, m.events, m.anomalies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) record(result string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(result).Inc()
}

func (m *Metrics) event(c Category) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) anomaly(a Anomaly) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(a.String()).Inc()
}
