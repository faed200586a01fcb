// Package metrics exposes Prometheus counters fed by engine lifecycle hooks
// and HTTP middleware.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry and the leadflow collectors.
type Metrics struct {
	Registry *prometheus.Registry

	StepVisits    *prometheus.CounterVec
	Personas      *prometheus.CounterVec
	Submissions   *prometheus.CounterVec
	AgentTurns    *prometheus.CounterVec
	AgentDuration prometheus.Histogram
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec

	logger *slog.Logger
}

// New creates and registers the collectors.
func New(logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StepVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_step_visits_total",
			Help: "Total number of flow steps entered.",
		}, []string{"step_id"}),
		Personas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_persona_selected_total",
			Help: "Total number of persona selections.",
		}, []string{"persona"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_submissions_total",
			Help: "Submissions delivered to the sink, by kind and result.",
		}, []string{"kind", "result"}),
		AgentTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_agent_turns_total",
			Help: "Fallback agent turns, by result.",
		}, []string{"result"}),
		AgentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadflow_agent_turn_duration_seconds",
			Help:    "Duration of fallback agent turns.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadflow_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		logger: logger,
	}
	m.Registry.MustRegister(
		m.StepVisits, m.Personas, m.Submissions, m.AgentTurns, m.AgentDuration,
		m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Hooks records engine events as metrics and structured log lines.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			m.logger.Debug("step_enter", "session_id", e.SessionID, "persona", e.Persona, "step_id", e.StepID)
			m.StepVisits.WithLabelValues(e.StepID).Inc()
		},
		OnPersonaSelected: func(ctx context.Context, e *domain.PersonaEvent) {
			m.logger.Info("persona_selected", "session_id", e.SessionID, "persona", e.Persona)
			m.Personas.WithLabelValues(string(e.Persona)).Inc()
		},
		OnSubmission: func(ctx context.Context, e *domain.SubmissionEvent) {
			m.Submissions.WithLabelValues(e.Kind, result(e.Err)).Inc()
		},
		OnAgentTurn: func(ctx context.Context, e *domain.AgentEvent) {
			m.logger.Debug("agent_turn", "session_id", e.SessionID, "chunks", e.Chunks, "duration", e.Duration)
			m.AgentTurns.WithLabelValues(result(e.Err)).Inc()
			m.AgentDuration.Observe(e.Duration.Seconds())
		},
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
