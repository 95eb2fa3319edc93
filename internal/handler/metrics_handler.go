package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/service"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

// MetricsHandler exposes Prometheus series and a JSON snapshot.
type MetricsHandler struct {
	service *service.MetricsService
}

// NewMetricsHandler creates a new handler.
func NewMetricsHandler(svc *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{service: svc}
}

// Prometheus serves the text exposition format.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	h.service.Handler().ServeHTTP(c.Writer, c.Request)
}

// Snapshot godoc
// @Summary Runtime metrics snapshot
// @Description Aggregated request, cache and database counters
// @Tags Operations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Snapshot(), nil)
}
