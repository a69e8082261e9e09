package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	ReadingsTotal *prometheus.CounterVec

	StoreOpDuration *prometheus.HistogramVec
	StoreErrors     *prometheus.CounterVec
	DBConnections   prometheus.Gauge

	EventsPublished *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector registers every metric on reg. Pass prometheus.NewRegistry()
// in tests so collectors do not clash on the default registry.
func NewCollector(serviceName string, reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		ReadingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "readings",
			Name:      "changes_total",
			Help:      "Committed glucose reading changes by kind (created, updated, deleted).",
		}, []string{"change"}),

		StoreOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Reading store operation latency distribution.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation", "backend"}),

		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Reading store errors by operation and kind.",
		}, []string{"operation", "kind"}),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Current number of open database connections.",
		}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Reading events handed to the publisher, by outcome.",
		}, []string{"outcome"}),

		gatherer: reg,
	}
}

// NewDefaultCollector also registers the Go runtime and process collectors.
func NewDefaultCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewCollector(serviceName, reg)
}

// ObserveStoreOp records the latency of one store call. Safe on a nil
// collector.
func (c *Collector) ObserveStoreOp(operation, backend string, start time.Time) {
	if c == nil {
		return
	}
	c.StoreOpDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

func (c *Collector) StoreError(operation, kind string) {
	if c == nil {
		return
	}
	c.StoreErrors.WithLabelValues(operation, kind).Inc()
}

func (c *Collector) ReadingChanged(change string) {
	if c == nil {
		return
	}
	c.ReadingsTotal.WithLabelValues(change).Inc()
}

func (c *Collector) EventPublished(outcome string) {
	if c == nil {
		return
	}
	c.EventsPublished.WithLabelValues(outcome).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
