package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/middleware"
	"github.com/DwayneJengSage/Bridge-Reporter/internal/service"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/logger"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/middleware/requestid"
)

// NewOpsRouter wires the ops endpoints behind recovery, request id, access log and metrics middleware.
func NewOpsRouter(h *OpsHandler, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	return r
}
