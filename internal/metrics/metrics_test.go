package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pixl-ae/leadflow/internal/metrics"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks(t *testing.T) {
	m := metrics.New(nil)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStepEnter(ctx, &domain.StepEvent{StepID: "dev_intro"})
	hooks.OnStepEnter(ctx, &domain.StepEvent{StepID: "dev_intro"})
	hooks.OnPersonaSelected(ctx, &domain.PersonaEvent{Persona: domain.PersonaBroker})
	hooks.OnSubmission(ctx, &domain.SubmissionEvent{Kind: domain.SubmissionBrokerCall})
	hooks.OnSubmission(ctx, &domain.SubmissionEvent{Kind: domain.SubmissionBrokerCall, Err: errors.New("disk full")})
	hooks.OnAgentTurn(ctx, &domain.AgentEvent{Duration: time.Second})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepVisits.WithLabelValues("dev_intro")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Personas.WithLabelValues("broker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("broker_calls", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("broker_calls", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentTurns.WithLabelValues("ok")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := metrics.New(nil)
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/sessions/{id}", "GET", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "leadflow_http_requests_total")
}
