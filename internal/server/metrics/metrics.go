package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so the default one never accumulates
// unrelated series.
type Collector struct {
	reg *prometheus.Registry

	LocationsAccepted prometheus.Counter
	LocationsRejected prometheus.Counter
	BusOfflineEvents  prometheus.Counter
	ActiveConnections prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		LocationsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_locations_accepted_total",
			Help: "Total driver samples accepted and fanned out.",
		}),
		LocationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_locations_rejected_total",
			Help: "Total driver samples rejected by validation or authorization.",
		}),
		BusOfflineEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustrack_bus_offline_total",
			Help: "Total busOffline events emitted by the idle watchdog.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustrack_ws_connections",
			Help: "Websocket connections currently authenticated.",
		}),
	}

	reg.MustRegister(
		c.LocationsAccepted, c.LocationsRejected,
		c.BusOfflineEvents, c.ActiveConnections,
	)
	return c
}

// IncLocationAccepted, IncLocationRejected, and IncBusOffline satisfy the
// tracking service's Metrics port.
func (c *Collector) IncLocationAccepted() { c.LocationsAccepted.Inc() }
func (c *Collector) IncLocationRejected() { c.LocationsRejected.Inc() }
func (c *Collector) IncBusOffline()       { c.BusOfflineEvents.Inc() }

// ConnOpened and ConnClosed satisfy the websocket handler's ConnGauge port.
func (c *Collector) ConnOpened() { c.ActiveConnections.Inc() }
func (c *Collector) ConnClosed() { c.ActiveConnections.Dec() }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on its own listener.
func (c *Collector) Serve(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics_server_error", "error", err)
		}
	}()
	log.Info("metrics_listening", "addr", addr)
	return srv
}
