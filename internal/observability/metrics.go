package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studyflow/internal/generation"
	"studyflow/internal/resilience"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	generationOutcomes    *prometheus.CounterVec
	breakerState          prometheus.Gauge
	breakerTransitions    *prometheus.CounterVec
	transcriptions        *prometheus.CounterVec
	mediaAcquisitions     *prometheus.CounterVec
	extractions           *prometheus.CounterVec
	flowDuration          *prometheus.HistogramVec
}

// long-running flows need buckets well past DefBuckets
var flowBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200, 1800}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyflow_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studyflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: flowBuckets,
			},
			[]string{"route", "method", "status"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyflow_upstream_requests_total",
				Help: "Total requests to generation and transcription providers.",
			},
			[]string{"provider", "endpoint", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studyflow_upstream_request_duration_seconds",
				Help:    "Upstream request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "endpoint", "status"},
		),
		generationOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyflow_generation_outcomes_total",
				Help: "Generation calls by task and outcome.",
			},
			[]string{"task", "outcome"},
		),
		breakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "studyflow_circuit_breaker_state",
				Help: "Generation circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
		),
		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyflow_circuit_breaker_transitions_total",
				Help: "Circuit breaker state transitions by target state.",
			},
			[]string{"to"},
		),
		transcriptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyflow_transcriptions_total",
				Help: "Transcriptions by mode: provider, mock or fallback.",
			},
			[]string{"mode"},
		),
		mediaAcquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyflow_media_acquisitions_total",
				Help: "Video audio acquisitions by result.",
			},
			[]string{"result"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studyflow_extractions_total",
				Help: "Document and image text extractions by type and result.",
			},
			[]string{"type", "result"},
		),
		flowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "studyflow_flow_duration_seconds",
				Help:    "Pipeline flow duration in seconds.",
				Buckets: flowBuckets,
			},
			[]string{"flow", "status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.generationOutcomes,
		m.breakerState,
		m.breakerTransitions,
		m.transcriptions,
		m.mediaAcquisitions,
		m.extractions,
		m.flowDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusLabel).Observe(duration.Seconds())
}

// UpstreamObserver returns a per-provider callback for upstream clients.
// Status 0 means the request never got a response.
func (m *Metrics) UpstreamObserver(provider string) func(endpoint string, status int, duration time.Duration) {
	return func(endpoint string, status int, duration time.Duration) {
		if m == nil {
			return
		}
		if endpoint == "" {
			endpoint = "unknown"
		}
		statusLabel := "error"
		if status > 0 {
			statusLabel = strconv.Itoa(status)
		}
		m.upstreamRequestsTotal.WithLabelValues(provider, endpoint, statusLabel).Inc()
		m.upstreamDuration.WithLabelValues(provider, endpoint, statusLabel).Observe(duration.Seconds())
	}
}

func (m *Metrics) ObserveGeneration(task generation.TaskKind, status generation.Status) {
	if m == nil {
		return
	}
	if task == "" {
		task = "unknown"
	}
	m.generationOutcomes.WithLabelValues(string(task), status.String()).Inc()
}

func (m *Metrics) ObserveBreakerTransition(_, to resilience.State) {
	if m == nil {
		return
	}
	m.breakerState.Set(float64(to))
	m.breakerTransitions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) ObserveTranscription(mode string) {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveMediaAcquisition(result string) {
	if m == nil {
		return
	}
	m.mediaAcquisitions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveExtraction(fileType, result string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(fileType, result).Inc()
}

// ObserveOCR records image extractions under type "image:<engine>".
func (m *Metrics) ObserveOCR(engine, result string) {
	m.ObserveExtraction("image:"+engine, result)
}

func (m *Metrics) ObserveFlow(flow, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.flowDuration.WithLabelValues(flow, status).Observe(duration.Seconds())
}
