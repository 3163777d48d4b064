// Package metrics owns the broker's Prometheus registry and its HTTP
// exposition endpoint. hook.MetricsHook registers the broker-level
// collectors directly against the Registerer this package hands out.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a prometheus.Registry so callers never import the
// client_golang package just to get a Registerer and a handler.
type Registry struct {
	reg *prometheus.Registry
}

// New returns a fresh registry with the standard process/Go collectors
// pre-registered, matching what prometheus.NewRegistry callers usually
// add by hand.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return &Registry{reg: reg}
}

// Registerer exposes the underlying prometheus.Registerer so hooks and
// other collectors can MustRegister against it.
func (r *Registry) Registerer() prometheus.Registerer { return r.reg }

// Handler returns the HTTP handler to mount at the scrape path (e.g.
// "/metrics").
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
