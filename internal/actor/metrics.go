package actor

import (
	"github.com/encodeous/nylon/internal/identity"
	"github.com/encodeous/nylon/internal/routing"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the actor updates as it runs,
// registered the way the teacher registers its session-status and
// build-info gauges.
type Metrics struct {
	activeLinks        prometheus.Gauge
	linkMetricMs       *prometheus.GaugeVec
	routeTableSize     prometheus.Gauge
	courierDelivered   prometheus.Counter
	courierForwarded   prometheus.Counter
	courierDropped     prometheus.Counter
	handshakeSuccesses prometheus.Counter
	handshakeFailures  prometheus.Counter
}

// NewMetrics registers the actor's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		activeLinks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "nylon", Subsystem: "link", Name: "active_total",
			Help: "Number of currently active links.",
		}),
		linkMetricMs: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nylon", Subsystem: "link", Name: "metric_milliseconds",
			Help: "Measured half-RTT metric per link, in milliseconds.",
		}, []string{"link_id", "peer"}),
		routeTableSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "nylon", Subsystem: "routing", Name: "table_size",
			Help: "Number of destinations in the routing table.",
		}),
		courierDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nylon", Subsystem: "courier", Name: "delivered_total",
			Help: "Courier packets delivered to this node.",
		}),
		courierForwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nylon", Subsystem: "courier", Name: "forwarded_total",
			Help: "Courier packets forwarded toward another hop.",
		}),
		courierDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nylon", Subsystem: "courier", Name: "dropped_total",
			Help: "Courier or routing packets dropped due to a full or missing link.",
		}),
		handshakeSuccesses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nylon", Subsystem: "handshake", Name: "success_total",
			Help: "Successful link handshakes.",
		}),
		handshakeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "nylon", Subsystem: "handshake", Name: "failure_total",
			Help: "Failed link handshakes.",
		}),
	}
}

// meteredEngine wraps the routing engine so every link metric update is also
// reflected in Prometheus, without teaching internal/routing anything about
// observability.
type meteredEngine struct {
	*routing.Engine
	metrics *Metrics
}

func (m *meteredEngine) SetLinkMetric(nb identity.Entity, link uuid.UUID, metricMs uint16) {
	m.Engine.SetLinkMetric(nb, link, metricMs)
	if m.metrics != nil {
		m.metrics.linkMetricMs.WithLabelValues(link.String(), nb.String()).Set(float64(metricMs))
	}
}
