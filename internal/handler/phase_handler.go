package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/service"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

// PhaseHandler exposes the phase approval workflow.
type PhaseHandler struct {
	service *service.PhaseService
}

// NewPhaseHandler creates a new handler.
func NewPhaseHandler(svc *service.PhaseService) *PhaseHandler {
	return &PhaseHandler{service: svc}
}

// Approve godoc
// @Summary Approve phase advancement
// @Description Re-check the phase gate and advance the student to the next phase
// @Tags Phases
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/students/{id}/approve-phase [post]
func (h *PhaseHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.service.Approve(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
