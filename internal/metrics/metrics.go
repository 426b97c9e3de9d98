package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizmaster_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizmaster_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"method", "route"},
	)

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizmaster_submissions_total",
			Help: "Quiz submissions by mode (submit, auto) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	GraderFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizmaster_grader_fallbacks_total",
			Help: "Subjective answers that received the neutral default score",
		},
		[]string{"reason"},
	)

	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizmaster_code_executions_total",
			Help: "Code execution requests by language and result status",
		},
		[]string{"language", "status"},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizmaster_code_execution_duration_seconds",
			Help:    "Round-trip time of code execution requests",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"language"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			Submissions,
			GraderFallbacks,
			Executions,
			ExecutionDuration,
		)
	})
}

// ObserveExecution records one call to the code execution service.
func ObserveExecution(language, status string, elapsed time.Duration) {
	Executions.WithLabelValues(language, status).Inc()
	ExecutionDuration.WithLabelValues(language).Observe(elapsed.Seconds())
}

// Middleware records request count and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
