package handler

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/service"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/response"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether one dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// OpsHandler exposes liveness, readiness and Prometheus endpoints for the worker.
type OpsHandler struct {
	metrics *service.MetricsService
	checks  map[string]ReadinessCheck
	polling atomic.Bool
}

// NewOpsHandler constructs an ops handler.
func NewOpsHandler(metrics *service.MetricsService) *OpsHandler {
	return &OpsHandler{metrics: metrics, checks: map[string]ReadinessCheck{}}
}

// AddCheck registers a named readiness dependency. Not safe to call once serving.
func (h *OpsHandler) AddCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetPolling records whether the poll loop is running.
func (h *OpsHandler) SetPolling(polling bool) {
	h.polling.Store(polling)
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds OK while the process is up.
func (h *OpsHandler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// Ready responds OK once the poll loop runs and every registered dependency answers.
func (h *OpsHandler) Ready(c *gin.Context) {
	if !h.polling.Load() {
		response.Error(c, http.StatusServiceUnavailable, appErrors.Clone(appErrors.ErrQueue, "poll loop not running"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	dependencies := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			response.Error(c, http.StatusServiceUnavailable, appErrors.Wrap(err, appErrors.ErrInternal, name+" not ready"))
			return
		}
		dependencies[name] = "ok"
	}
	response.OK(c, gin.H{"status": "ready", "dependencies": dependencies})
}
