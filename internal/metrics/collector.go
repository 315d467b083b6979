package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the broker's prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	connectionsTotal prometheus.Counter
	authFailures     prometheus.Counter
	relayedTotal     *prometheus.CounterVec
	motionAlerts     prometheus.Counter

	connectionsActive prometheus.Gauge
	camerasActive     prometheus.Gauge
	viewersActive     prometheus.Gauge
}

// NewCollector builds the collector. sessionCount, when non-nil, is sampled
// on scrape for the active-sessions gauge.
func NewCollector(sessionCount func() int) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signal_connections_total",
		Help: "Total websocket connections accepted",
	})
	reg.MustRegister(c.connectionsTotal)

	c.authFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signal_auth_failures_total",
		Help: "Authentication failures on the websocket handshake",
	})
	reg.MustRegister(c.authFailures)

	c.relayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_messages_relayed_total",
		Help: "Negotiation messages relayed to a resolved target",
	}, []string{"type"})
	reg.MustRegister(c.relayedTotal)

	c.motionAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signal_motion_alerts_total",
		Help: "Motion alerts delivered to viewers",
	})
	reg.MustRegister(c.motionAlerts)

	c.connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_connections_active",
		Help: "Currently open websocket connections",
	})
	reg.MustRegister(c.connectionsActive)

	c.camerasActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_cameras_active",
		Help: "Registered camera connections",
	})
	reg.MustRegister(c.camerasActive)

	c.viewersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_viewers_active",
		Help: "Registered viewer connections",
	})
	reg.MustRegister(c.viewersActive)

	if sessionCount != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "signal_sessions_active",
			Help: "Live sessions in the session store",
		}, func() float64 { return float64(sessionCount()) }))
	}

	return c
}

func (c *Collector) ConnOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

func (c *Collector) ConnClosed() { c.connectionsActive.Dec() }

func (c *Collector) AuthFailure() { c.authFailures.Inc() }

func (c *Collector) Relayed(msgType string) { c.relayedTotal.WithLabelValues(msgType).Inc() }

func (c *Collector) MotionAlerts(n int) { c.motionAlerts.Add(float64(n)) }

func (c *Collector) SetCameras(n int) { c.camerasActive.Set(float64(n)) }

func (c *Collector) SetViewers(n int) { c.viewersActive.Set(float64(n)) }

// Handler exposes the private registry for the /metrics route.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
