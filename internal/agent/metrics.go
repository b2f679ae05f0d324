package agent

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors internal/ifaces/gateway exposes
// at /ops/metrics, adapted from the teacher's infrastructure/metrics shape
// (SPEC_FULL.md §3).
type Metrics struct {
	CycleCount       prometheus.Counter
	Energy           prometheus.Gauge
	Lyapunov         prometheus.Gauge
	BlockedTotal     prometheus.Counter
	SelfProduced     prometheus.Counter
	AdaptationsTotal prometheus.Counter
}

// NewMetrics registers the agent's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CycleCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noesis", Subsystem: "agent", Name: "cycles_total", Help: "Total agent cycles run.",
		}),
		Energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "noesis", Subsystem: "agent", Name: "energy_current", Help: "Current energy level.",
		}),
		Lyapunov: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "noesis", Subsystem: "agent", Name: "lyapunov_v", Help: "Current Lyapunov V.",
		}),
		BlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noesis", Subsystem: "agent", Name: "blocked_total", Help: "Total blocked action attempts.",
		}),
		SelfProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noesis", Subsystem: "agent", Name: "self_produced_total", Help: "Total self-produced operations.",
		}),
		AdaptationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noesis", Subsystem: "agent", Name: "adaptations_total", Help: "Total ultrastability adaptations applied.",
		}),
	}
	reg.MustRegister(m.CycleCount, m.Energy, m.Lyapunov, m.BlockedTotal, m.SelfProduced, m.AdaptationsTotal)
	return m
}

// Observe records one completed cycle's headline numbers.
func (m *Metrics) Observe(energy, v float64, blocked bool) {
	m.CycleCount.Inc()
	m.Energy.Set(energy)
	m.Lyapunov.Set(v)
	if blocked {
		m.BlockedTotal.Inc()
	}
}
