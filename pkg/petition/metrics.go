package petition

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the prometheus collectors the petition services update.
// A nil *Metrics is valid everywhere it's accepted; every method is a
// no-op on a nil receiver so wiring metrics is opt-in.
type Metrics struct {
	FateOutcomes *prometheus.CounterVec
}

// NewMetrics constructs and registers the fate-outcome counter vector
// against reg. reg may be nil, in which case the collector is created but
// not registered (useful for tests that don't stand up a registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FateOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "three_fates_petition_fate_outcomes_total",
			Help: "Count of petitions reaching each terminal state.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.FateOutcomes)
	}
	return m
}

func (m *Metrics) observeFate(state string) {
	if m == nil || m.FateOutcomes == nil {
		return
	}
	m.FateOutcomes.WithLabelValues(state).Inc()
}
