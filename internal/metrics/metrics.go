package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns an isolated registry so tests and multiple instances never
// collide on the process-global one.
type Recorder struct {
	registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	gatewayLatency    *prometheus.HistogramVec
	snippetStoreTotal *prometheus.CounterVec
	cacheRegeneration *prometheus.CounterVec
}

// NewRecorder builds a Recorder and registers all collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		// Histogram: sandbox operation duration, labeled by request shape.
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playground_request_duration_seconds",
				Help:    "Number of requests made",
				Buckets: []float64{1e-4, 1e-3, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			labelNames,
		),

		// Histogram: gateway HTTP latency in seconds.
		gatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_latency_seconds",
				Help:    "HTTP request latency for the gateway in seconds.",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"path", "method", "status_code"},
		),

		snippetStoreTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_snippet_store_operations_total",
				Help: "Snippet store calls by backend, operation and result.",
			},
			[]string{"backend", "operation", "result"},
		),

		cacheRegeneration: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_metadata_regenerations_total",
				Help: "Metadata cache regenerations by resource and result.",
			},
			[]string{"resource", "result"},
		),
	}

	r.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		r.requestDuration,
		r.gatewayLatency,
		r.snippetStoreTotal,
		r.cacheRegeneration,
	)
	return r
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Record observes one dispatched operation.
func (r *Recorder) Record(labels Labels, elapsed time.Duration) {
	r.requestDuration.WithLabelValues(labels.values()...).Observe(elapsed.Seconds())
}

// RecordNoRequest observes a call that carries no request shape, such as a
// metadata regeneration.
func (r *Recorder) RecordNoRequest(endpoint Endpoint, outcome Outcome, elapsed time.Duration) {
	r.Record(Labels{Endpoint: endpoint, Outcome: outcome}, elapsed)
}

// RecordSnippetStore counts one call to a snippet store backend.
func (r *Recorder) RecordSnippetStore(backend, operation string, err error) {
	r.snippetStoreTotal.WithLabelValues(backend, operation, result(err)).Inc()
}

// RecordRegeneration counts one metadata cache regeneration attempt.
func (r *Recorder) RecordRegeneration(resource string, err error) {
	r.cacheRegeneration.WithLabelValues(resource, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler exposes the registry for Prometheus to scrape.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware measures gateway latency for each HTTP request. The path label
// is the matched route pattern, so ids in the URL do not explode cardinality.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, req)

		path := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		r.gatewayLatency.
			WithLabelValues(path, req.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
