// Package metrics owns the process-wide Prometheus registry, adapted
// from the teacher's infrastructure/metrics package shape.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated prometheus.Registry rather than the global
// default, so tests can spin up isolated instances without collector
// registration collisions.
type Registry struct {
	reg *prometheus.Registry
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(prometheus.NewGoCollector())
	r.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return &Registry{reg: r}
}

// Registerer exposes the underlying prometheus.Registerer for packages
// (internal/agent) that register their own collectors against the shared
// registry.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Handler returns the HTTP handler go-chi mounts at /ops/metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
