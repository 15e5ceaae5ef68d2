package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/crmarques/quayconf/faults"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quayconf"

// Recorder collects the API and mutation counters of one invocation. A nil
// Recorder drops every observation.
type Recorder struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	apiFailures *prometheus.CounterVec
	mutations   *prometheus.CounterVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()

	recorder := &Recorder{
		registry: registry,
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Registry API requests by method and response status.",
			},
			[]string{"method", "status"},
		),
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Registry API request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		apiFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_failures_total",
				Help:      "Registry API requests that failed with a typed error.",
			},
			[]string{"method", "category"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Create, update and delete decisions by resource kind.",
			},
			[]string{"kind", "operation", "dry_run"},
		),
	}

	registry.MustRegister(
		recorder.apiRequests,
		recorder.apiDuration,
		recorder.apiFailures,
		recorder.mutations,
	)
	return recorder
}

// ObserveRequest records one completed HTTP exchange. status is 0 when no
// response was received.
func (r *Recorder) ObserveRequest(method string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	label := "none"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.apiRequests.WithLabelValues(strings.ToUpper(method), label).Inc()
	r.apiDuration.WithLabelValues(strings.ToUpper(method)).Observe(duration.Seconds())
}

func (r *Recorder) ObserveFailure(method string, category faults.ErrorCategory) {
	if r == nil {
		return
	}
	r.apiFailures.WithLabelValues(strings.ToUpper(method), string(category)).Inc()
}

// ObserveMutation counts a mutation that was issued, or that would have been
// issued in check mode.
func (r *Recorder) ObserveMutation(kind string, operation string, dryRun bool) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(kind, operation, strconv.FormatBool(dryRun)).Inc()
}

// WriteTextfile writes the collected metrics in the text exposition format,
// for a node-exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return faults.Internal("failed to write metrics file", err)
	}
	return nil
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
