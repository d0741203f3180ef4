package health_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/internal/health"
	"github.com/fd1az/dexswap/internal/logger"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealthy(t *testing.T) {
	s := health.NewServer(8081, "v1", logger.NewNop())
	s.RegisterCheck("wallet", func(context.Context) (bool, string) { return true, "connected" })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	code, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, code)

	var report health.Report
	require.NoError(t, jsoniter.Unmarshal(body, &report))
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "v1", report.Version)
	assert.Equal(t, health.Check{Healthy: true, Message: "connected"}, report.Checks["wallet"])

	code, body = get(t, srv, "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", string(body))
}

func TestDegraded(t *testing.T) {
	s := health.NewServer(8081, "v1", logger.NewNop())
	s.RegisterCheck("wallet", func(context.Context) (bool, string) { return false, "disconnected" })
	s.RegisterCheck("tokens", func(context.Context) (bool, string) { return true, "" })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	code, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	var report health.Report
	require.NoError(t, jsoniter.Unmarshal(body, &report))
	assert.Equal(t, "degraded", report.Status)
	assert.False(t, report.Checks["wallet"].Healthy)
	assert.True(t, report.Checks["tokens"].Healthy)

	code, _ = get(t, srv, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, body = get(t, srv, "/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", string(body))
}

func TestStartRejectsBadPort(t *testing.T) {
	s := health.NewServer(0, "v1", logger.NewNop())
	assert.Error(t, s.Start())
	assert.NoError(t, s.Stop(context.Background()))
}
