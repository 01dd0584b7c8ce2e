// Package observability exposes Prometheus metrics for the realtime engine.
package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the realtime gauges and counters.
type Metrics struct {
	Connections   prometheus.Gauge
	Subscriptions prometheus.Gauge
	Messages      *prometheus.CounterVec
	Broadcasts    prometheus.Counter
	Dropped       prometheus.Counter
}

// NewMetrics registers the notif metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Connections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "notif_realtime_connections",
			Help: "Number of active WebSocket connections",
		}),
		Subscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "notif_realtime_subscriptions",
			Help: "Number of active channel subscriptions",
		}),
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notif_realtime_messages_total",
			Help: "Messages forwarded to local sockets",
		}, []string{"channel"}),
		Broadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notif_broadcasts_total",
			Help: "Broadcasts published through the HTTP trigger",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notif_realtime_dropped_total",
			Help: "Messages dropped for lagging receivers",
		}),
	}
}

// PrometheusHandler serves the default registry in exposition format.
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
