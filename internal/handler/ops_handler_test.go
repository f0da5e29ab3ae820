package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/service"
)

func newOpsServer(h *OpsHandler, metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewOpsRouter(h, metrics, zap.NewNop())
}

func serve(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestOpsHealth(t *testing.T) {
	r := newOpsServer(NewOpsHandler(nil), nil)

	w := serve(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, w.Body.String())
}

func TestOpsReadyRequiresPolling(t *testing.T) {
	h := NewOpsHandler(nil)
	r := newOpsServer(h, nil)

	w := serve(r, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "QUEUE_ERROR", body.Error.Code)

	h.SetPolling(true)
	assert.Equal(t, http.StatusOK, serve(r, "/ready").Code)
}

func TestOpsReadyReportsFailingDependency(t *testing.T) {
	h := NewOpsHandler(nil)
	h.SetPolling(true)
	h.AddCheck("redis", func(ctx context.Context) error { return nil })
	h.AddCheck("postgres", func(ctx context.Context) error { return errors.New("connection refused") })
	r := newOpsServer(h, nil)

	w := serve(r, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "postgres not ready")
}

func TestOpsMetricsExposesReporterCounters(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveReceived(0)
	r := newOpsServer(NewOpsHandler(metrics), metrics)

	serve(r, "/health")
	w := serve(r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "reporter_empty_polls_total 1"))
	assert.Contains(t, body, `http_request_duration_seconds_count{method="GET",path="/health",status="200"} 1`)
}

func TestOpsMetricsUnavailableWithoutService(t *testing.T) {
	r := newOpsServer(NewOpsHandler(nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, "/metrics").Code)
}
