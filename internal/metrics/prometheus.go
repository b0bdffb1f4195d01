// Package metrics records analysis, store and HTTP metrics with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chartlab/internal/models"
)

// Recorder implements analysis.Observer and the store error hook using a
// private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
	detectorDuration *prometheus.HistogramVec
	detectorErrors   *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	lastClose        *prometheus.GaugeVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a recorder with Go and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartlab_analysis_runs_total",
				Help: "Total number of analysis runs by outcome",
			},
			[]string{"outcome"},
		),
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartlab_pattern_events_total",
				Help: "Pattern events emitted by kind",
			},
			[]string{"kind"},
		),
		detectorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartlab_detector_duration_seconds",
				Help:    "Duration of a single detector run in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"detector"},
		),
		detectorErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartlab_detector_errors_total",
				Help: "Detector runs that returned an error",
			},
			[]string{"detector"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartlab_store_errors_total",
				Help: "Failed store operations",
			},
			[]string{"op"},
		),
		lastClose: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chartlab_last_close",
				Help: "Close of the last analysed candle per symbol",
			},
			[]string{"symbol"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartlab_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartlab_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

// ObserveDetector records the duration and outcome of one detector run.
func (r *Recorder) ObserveDetector(name string, elapsed time.Duration, err error) {
	r.detectorDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		r.detectorErrors.WithLabelValues(name).Inc()
	}
}

// RecordRun records a finished analysis run and its events.
func (r *Recorder) RecordRun(symbol string, candles []models.Candle, events []models.PatternEvent) {
	r.runsTotal.WithLabelValues("ok").Inc()
	for _, e := range events {
		r.eventsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	if len(candles) > 0 {
		r.lastClose.WithLabelValues(symbol).Set(candles[len(candles)-1].Close)
	}
}

// RecordRunFailure records an analysis run that returned an error.
func (r *Recorder) RecordRunFailure() {
	r.runsTotal.WithLabelValues("error").Inc()
}

// RecordStoreError counts a failed store operation.
func (r *Recorder) RecordStoreError(op string, _ error) {
	r.storeErrors.WithLabelValues(op).Inc()
}

// ObserveHTTP records one served request. route should be the route
// template, not the raw path, to keep label cardinality low.
func (r *Recorder) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
