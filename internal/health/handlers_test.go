package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type checkerFunc func(ctx context.Context, timeout time.Duration) error

func (f checkerFunc) PingRedis(ctx context.Context, timeout time.Duration) error {
	return f(ctx, timeout)
}

func TestLive(t *testing.T) {
	h := Handler{}
	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}

func TestReady(t *testing.T) {
	h := Handler{Checker: checkerFunc(func(context.Context, time.Duration) error { return nil })}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["redis"])
}

func TestReadyRedisDown(t *testing.T) {
	h := Handler{Checker: checkerFunc(func(context.Context, time.Duration) error {
		return errors.New("connection refused")
	})}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyUnconfigured(t *testing.T) {
	h := Handler{}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
