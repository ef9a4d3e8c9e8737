package consensus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the observable side of the commit rule. Pass a nil
// registerer for unregistered (test) metrics.
type Metrics struct {
	LastCommittedRound    prometheus.Gauge
	CommittedCertificates prometheus.Counter
	CommittedSubDags      prometheus.Counter
	Outcomes              *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LastCommittedRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_last_committed_round",
			Help: "Highest round for which a leader has been committed",
		}),
		CommittedCertificates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_committed_certificates_total",
			Help: "Certificates sequenced into committed sub-DAGs",
		}),
		CommittedSubDags: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_committed_sub_dags_total",
			Help: "Committed sub-DAGs emitted",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consensus_process_outcomes_total",
			Help: "Certificate processing outcomes by variant",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.LastCommittedRound, m.CommittedCertificates, m.CommittedSubDags, m.Outcomes)
	}
	return m
}
