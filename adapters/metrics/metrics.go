// Package metrics provides Prometheus metrics collection for AdminKit.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/plugin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adminkit"

// Collector holds all Prometheus metrics for AdminKit. It implements
// plugin.Recorder and events.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Plugin metrics
	PluginPhaseDuration *prometheus.HistogramVec
	PluginPhaseFailures *prometheus.CounterVec

	// Event metrics
	EventsEmitted    *prometheus.CounterVec
	ListenerFailures *prometheus.CounterVec
	EmitDuration     *prometheus.HistogramVec

	// Schema and record metrics
	Resources        prometheus.Gauge
	RecordOperations *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

var (
	_ plugin.Recorder = (*Collector)(nil)
	_ events.Recorder = (*Collector)(nil)
)

// New creates a collector registered on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry creates a collector with a custom registerer. The gatherer
// backs Handler and may be nil when the metrics are never served.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gatherer: gatherer,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		PluginPhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plugin_phase_duration_seconds",
				Help:      "Duration of plugin register and boot hooks",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"plugin", "phase"},
		),
		PluginPhaseFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_phase_failures_total",
				Help:      "Total number of plugin hooks that returned an error",
			},
			[]string{"plugin", "phase"},
		),

		EventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_emitted_total",
				Help:      "Total number of emitted events",
			},
			[]string{"event"},
		),
		ListenerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_listener_failures_total",
				Help:      "Total number of failed event listeners",
			},
			[]string{"event"},
		),
		EmitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_emit_duration_seconds",
				Help:      "Time spent running the listeners of one emission",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"event"},
		),

		Resources: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "resources",
				Help:      "Number of resources in the frozen registry",
			},
		),
		RecordOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_operations_total",
				Help:      "Record operations by resource and outcome",
			},
			[]string{"resource", "operation", "result"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObservePhase records a plugin hook.
func (c *Collector) ObservePhase(id string, phase plugin.Phase, duration time.Duration, err error) {
	c.PluginPhaseDuration.WithLabelValues(id, string(phase)).Observe(duration.Seconds())
	if err != nil {
		c.PluginPhaseFailures.WithLabelValues(id, string(phase)).Inc()
	}
}

// ObserveEmit records one emission.
func (c *Collector) ObserveEmit(event string, listeners, failures int, duration time.Duration) {
	c.EventsEmitted.WithLabelValues(event).Inc()
	c.EmitDuration.WithLabelValues(event).Observe(duration.Seconds())
	if failures > 0 {
		c.ListenerFailures.WithLabelValues(event).Add(float64(failures))
	}
}

// ObserveRecord records a CRUD operation on a resource.
func (c *Collector) ObserveRecord(resource, operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.RecordOperations.WithLabelValues(resource, operation, result).Inc()
}

// ObserveReload records a config reload attempt.
func (c *Collector) ObserveReload(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

// Handler serves the gathered metrics.
func (c *Collector) Handler() http.Handler {
	if c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware instruments requests. The route label is the chi route pattern,
// which keeps record ids out of label values.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.RequestsInFlight.Inc()
		defer c.RequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status/100)+"xx").Inc()
		c.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
