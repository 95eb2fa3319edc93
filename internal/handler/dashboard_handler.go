package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/service"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

// DashboardHandler exposes aggregated read models.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Student godoc
// @Summary Student dashboard
// @Description Aggregate the caller's standing across the course
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.service.StudentDashboard(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Leaderboard godoc
// @Summary Leaderboard
// @Description Rank students by total points
// @Tags Dashboard
// @Produce json
// @Param limit query int false "Number of entries"
// @Success 200 {object} response.Envelope
// @Router /leaderboard [get]
func (h *DashboardHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	board, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// AdminOverview godoc
// @Summary Admin overview
// @Description Summarise work waiting on admins
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/overview [get]
func (h *DashboardHandler) AdminOverview(c *gin.Context) {
	overview, err := h.service.AdminOverview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}
