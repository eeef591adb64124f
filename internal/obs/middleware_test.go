package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payhub/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("payhub", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/webhook/{provider}"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/webhook/{provider}", "200"))
	require.Equal(t, float64(1), total)

	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsSkipsScrapeEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("payhub", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, testutil.CollectAndCount(metrics.ReqTotal))
}

func TestHTTPMetricsUnmatchedRouteLabel(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("payhub", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	// a scanner path without a matched route collapses into one series
	req := httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	require.Equal(t, float64(1), total)
}

func TestRoutePatternContext(t *testing.T) {
	ctx := obs.WithRoutePattern(nil, "/api/receipt/{sessionId}")
	require.Equal(t, "/api/receipt/{sessionId}", obs.RoutePatternFromContext(ctx))
	require.Empty(t, obs.RoutePatternFromContext(nil))
}

func TestStatusRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := obs.NewStatusRecorder(rr)

	require.Equal(t, http.StatusOK, rec.Status())

	rec.WriteHeader(http.StatusBadRequest)
	n, err := rec.Write([]byte(`{"success":false}`))
	require.NoError(t, err)

	require.Equal(t, http.StatusBadRequest, rec.Status())
	require.Equal(t, int64(n), rec.BytesWritten())
}
