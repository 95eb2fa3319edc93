package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/internal/service"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

// ProgressHandler exposes the student progress ledger.
type ProgressHandler struct {
	service *service.ProgressService
}

// NewProgressHandler creates a new handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// RecordVideo godoc
// @Summary Report video progress
// @Description Report the watched percentage of a week's video
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Week ID"
// @Param payload body models.VideoProgressRequest true "Video progress payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id}/video-progress [post]
func (h *ProgressHandler) RecordVideo(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.VideoProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid video progress payload"))
		return
	}

	progress, err := h.service.RecordVideoProgress(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// GetWeek godoc
// @Summary Get week progress
// @Description Get the caller's ledger row for one week
// @Tags Progress
// @Produce json
// @Param id path string true "Week ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id}/progress [get]
func (h *ProgressHandler) GetWeek(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	progress, err := h.service.GetWeekProgress(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Standing godoc
// @Summary Phase standing
// @Description Summarise the caller's standing in every phase
// @Tags Progress
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /progress/phases [get]
func (h *ProgressHandler) Standing(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	standings, err := h.service.PhaseStanding(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// StudentStanding godoc
// @Summary Phase standing for a student
// @Description Summarise one student's standing in every phase
// @Tags Progress
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/students/{id}/progress [get]
func (h *ProgressHandler) StudentStanding(c *gin.Context) {
	standings, err := h.service.PhaseStanding(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}
