package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/service"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

// CurriculumHandler exposes phase, week and content endpoints.
type CurriculumHandler struct {
	service  *service.CurriculumService
	progress *service.ProgressService
}

// NewCurriculumHandler creates a new handler.
func NewCurriculumHandler(svc *service.CurriculumService, progress *service.ProgressService) *CurriculumHandler {
	return &CurriculumHandler{service: svc, progress: progress}
}

// ListPhases godoc
// @Summary List phases
// @Description List all curriculum phases in order
// @Tags Curriculum
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /phases [get]
func (h *CurriculumHandler) ListPhases(c *gin.Context) {
	phases, err := h.service.ListPhases(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, phases, nil)
}

// GetPhase godoc
// @Summary Get phase
// @Description Get a phase with its weeks
// @Tags Curriculum
// @Produce json
// @Param id path string true "Phase ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /phases/{id} [get]
func (h *CurriculumHandler) GetPhase(c *gin.Context) {
	phase, err := h.service.GetPhase(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, phase, nil)
}

// CreatePhase godoc
// @Summary Create phase
// @Description Add a curriculum phase
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param payload body service.CreatePhaseRequest true "Phase payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /phases [post]
func (h *CurriculumHandler) CreatePhase(c *gin.Context) {
	var req service.CreatePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid phase payload"))
		return
	}
	phase, err := h.service.CreatePhase(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, phase)
}

// UpdatePhase godoc
// @Summary Update phase
// @Description Edit a phase's title and description
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Phase ID"
// @Param payload body service.UpdatePhaseRequest true "Phase payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /phases/{id} [put]
func (h *CurriculumHandler) UpdatePhase(c *gin.Context) {
	var req service.UpdatePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid phase payload"))
		return
	}
	phase, err := h.service.UpdatePhase(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, phase, nil)
}

// ListWeeks godoc
// @Summary List phase weeks
// @Description List the weeks of a phase with the caller's lock state
// @Tags Curriculum
// @Produce json
// @Param id path string true "Phase ID"
// @Success 200 {object} response.Envelope
// @Router /phases/{id}/weeks [get]
func (h *CurriculumHandler) ListWeeks(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	states, err := h.progress.WeekStates(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, states, nil)
}

// CreateWeek godoc
// @Summary Create week
// @Description Add a week to a phase
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Phase ID"
// @Param payload body service.CreateWeekRequest true "Week payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /phases/{id}/weeks [post]
func (h *CurriculumHandler) CreateWeek(c *gin.Context) {
	var req service.CreateWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid week payload"))
		return
	}
	week, err := h.service.CreateWeek(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, week)
}

// UpdateWeek godoc
// @Summary Update week
// @Description Edit a week's title and point budgets
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Week ID"
// @Param payload body service.UpdateWeekRequest true "Week payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id} [put]
func (h *CurriculumHandler) UpdateWeek(c *gin.Context) {
	var req service.UpdateWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid week payload"))
		return
	}
	week, err := h.service.UpdateWeek(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}

// GetContent godoc
// @Summary Get week content
// @Description Get the instructional content of a week; students only see unlocked weeks
// @Tags Curriculum
// @Produce json
// @Param id path string true "Week ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /weeks/{id}/content [get]
func (h *CurriculumHandler) GetContent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	content, err := h.service.GetContent(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// UpsertContent godoc
// @Summary Upsert week content
// @Description Create or replace a week's instructional content
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Week ID"
// @Param payload body service.UpsertContentRequest true "Content payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /weeks/{id}/content [put]
func (h *CurriculumHandler) UpsertContent(c *gin.Context) {
	var req service.UpsertContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid content payload"))
		return
	}
	content, err := h.service.UpsertContent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}
