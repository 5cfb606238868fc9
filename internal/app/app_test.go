package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-build/internal/observability"
	"github.com/odyssey-erp/odyssey-build/internal/platform/blob"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BLOB_DRIVER", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 2, cfg.ConflictRetries)
	require.Equal(t, blob.DriverMemory, blob.Driver(cfg.BlobDriver))
	require.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	base := Config{RateLimitPerMinute: 60, BlobDriver: "memory"}
	require.NoError(t, base.Validate())

	bad := base
	bad.ConflictRetries = -1
	require.Error(t, bad.Validate())

	bad = base
	bad.BlobDriver = "s3"
	require.ErrorContains(t, bad.Validate(), "BLOB_S3_BUCKET")
	bad.BlobS3Bucket = "odyssey-audit"
	require.NoError(t, bad.Validate())
	require.Equal(t, "odyssey-audit", bad.BlobConfig().Bucket)

	bad = base
	bad.BlobDriver = "gcs"
	require.Error(t, bad.Validate())
}

func TestLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("order_id", "po-1"))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	require.Equal(t, "po-1", line["order_id"])
}

func TestRouterHealthAndReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger:  logger,
		Config:  &Config{RateLimitPerMinute: 100},
		Metrics: observability.NewMetrics(),
		Readiness: map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body readiness
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Checks["postgres"])
	require.Equal(t, "connection refused", body.Checks["redis"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `odyssey_http_requests_total{code="200",route="/healthz"} 1`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterRateLimit(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 2}})
	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestTestModeFlag(t *testing.T) {
	t.Cleanup(RefreshTestMode)

	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv(TestModeEnv, "maybe")
	RefreshTestMode()
	require.False(t, InTestMode())
}
