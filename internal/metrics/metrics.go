package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "workspark"

// Metrics holds the Prometheus collectors for the gateway, the identity filter and
// the tenant data source. A nil *Metrics records nothing.
type Metrics struct {
	GatewayRequests    *prometheus.CounterVec
	GatewayRejections  *prometheus.CounterVec
	IdentityRejections *prometheus.CounterVec
	PoolsActive        prometheus.Gauge
	PoolCreations      *prometheus.CounterVec
	ProvisioningRuns   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer to expose
// them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of requests handled by the gateway by outcome.",
		}, []string{"outcome"}), // outcome: forwarded, rejected
		GatewayRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rejections_total",
			Help:      "Total number of gateway rejections by error kind.",
		}, []string{"kind"}),
		IdentityRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "rejections_total",
			Help:      "Total number of downstream identity rejections by error kind.",
		}, []string{"kind"}),
		PoolsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datasource",
			Name:      "pools_active",
			Help:      "Number of live tenant connection pools.",
		}),
		PoolCreations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasource",
			Name:      "pool_creations_total",
			Help:      "Total number of tenant pool creation attempts by result.",
		}, []string{"result"}), // result: created, discarded, failed
		ProvisioningRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "runs_total",
			Help:      "Total number of tenant schema provisioning runs by result.",
		}, []string{"result"}), // result: succeeded, failed
	}
}

func (m *Metrics) GatewayForwarded() {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues("forwarded").Inc()
}

func (m *Metrics) GatewayRejected(kind string) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues("rejected").Inc()
	m.GatewayRejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) IdentityRejected(kind string) {
	if m == nil {
		return
	}
	m.IdentityRejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) PoolCreated() {
	if m == nil {
		return
	}
	m.PoolCreations.WithLabelValues("created").Inc()
	m.PoolsActive.Inc()
}

func (m *Metrics) PoolDiscarded() {
	if m == nil {
		return
	}
	m.PoolCreations.WithLabelValues("discarded").Inc()
}

func (m *Metrics) PoolFailed() {
	if m == nil {
		return
	}
	m.PoolCreations.WithLabelValues("failed").Inc()
}

func (m *Metrics) PoolsClosed(n int) {
	if m == nil {
		return
	}
	m.PoolsActive.Sub(float64(n))
}

func (m *Metrics) Provisioned(ok bool) {
	if m == nil {
		return
	}
	result := "succeeded"
	if !ok {
		result = "failed"
	}
	m.ProvisioningRuns.WithLabelValues(result).Inc()
}
