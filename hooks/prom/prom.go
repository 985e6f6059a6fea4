// Package promhooks exports tenant lifecycle events as Prometheus metrics.
package promhooks

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tenantredis"
)

type Hooks struct {
	connects      *prometheus.CounterVec
	connectTime   *prometheus.HistogramVec
	connectErrors *prometheus.CounterVec
	releases      *prometheus.CounterVec
	cmdErrors     *prometheus.CounterVec
}

var _ tenantredis.Hooks = (*Hooks)(nil)

// New registers the collectors on reg (prometheus.DefaultRegisterer if nil).
func New(namespace string, reg prometheus.Registerer) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &Hooks{
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_connects_total",
			Help:      "Tenant connections established",
		}, []string{"tenant", "persistent"}),
		connectTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tenant_connect_duration_seconds",
			Help:      "Time to connect, authenticate and select a database",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"tenant"}),
		connectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_connect_errors_total",
			Help:      "Failed tenant connections by kind",
		}, []string{"tenant", "kind"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_releases_total",
			Help:      "Tenant connections closed",
		}, []string{"tenant"}),
		cmdErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_command_errors_total",
			Help:      "Passthrough commands that returned an error",
		}, []string{"tenant", "command"}),
	}
	for _, c := range []prometheus.Collector{h.connects, h.connectTime, h.connectErrors, h.releases, h.cmdErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) TenantConnected(tenant string, persistent bool, elapsed time.Duration) {
	p := "false"
	if persistent {
		p = "true"
	}
	h.connects.WithLabelValues(tenant, p).Inc()
	h.connectTime.WithLabelValues(tenant).Observe(elapsed.Seconds())
}

func (h *Hooks) TenantConnectFailed(tenant string, err error) {
	h.connectErrors.WithLabelValues(tenant, errorKind(err)).Inc()
}

func (h *Hooks) TenantReleased(tenant string) {
	h.releases.WithLabelValues(tenant).Inc()
}

// CommandFailed labels by upper-cased command so GET and get share a series.
func (h *Hooks) CommandFailed(tenant, command string, _ error) {
	h.cmdErrors.WithLabelValues(tenant, strings.ToUpper(command)).Inc()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, tenantredis.ErrConfiguration):
		return "config"
	case errors.Is(err, tenantredis.ErrAuthentication):
		return "auth"
	case errors.Is(err, tenantredis.ErrConnection):
		return "connection"
	default:
		return "other"
	}
}
