package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/internal/service"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

// SubmissionHandler exposes assignment and quiz submission endpoints.
type SubmissionHandler struct {
	service *service.SubmissionService
}

// NewSubmissionHandler creates a new handler.
func NewSubmissionHandler(svc *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// SubmitAssignment godoc
// @Summary Submit assignment
// @Description Upload an assignment file or link for an unlocked week
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Week ID"
// @Param file formData file false "Assignment file"
// @Param link formData string false "Assignment link"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /weeks/{id}/assignment [post]
func (h *SubmissionHandler) SubmitAssignment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.SubmitAssignmentRequest{}
	if link := strings.TrimSpace(c.PostForm("link")); link != "" {
		req.Link = &link
	}
	if fileHeader, err := c.FormFile("file"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
			return
		}
		defer f.Close()
		req.File = f
		req.FileName = fileHeader.Filename
	}

	sub, err := h.service.SubmitAssignment(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// SubmitQuiz godoc
// @Summary Submit quiz
// @Description Submit quiz answers for immediate grading
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Week ID"
// @Param payload body service.SubmitQuizRequest true "Quiz answers"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /weeks/{id}/quiz [post]
func (h *SubmissionHandler) SubmitQuiz(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quiz payload"))
		return
	}

	result, err := h.service.SubmitQuiz(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List submissions
// @Description List submissions with filtering; students see only their own
// @Tags Submissions
// @Produce json
// @Param user_id query string false "Filter by user"
// @Param week_id query string false "Filter by week"
// @Param kind query string false "ASSIGNMENT or QUIZ"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.SubmissionFilter{
		UserID: c.Query("user_id"),
		WeekID: c.Query("week_id"),
	}
	if kind := c.Query("kind"); kind != "" {
		filter.Kind = models.SubmissionKind(strings.ToUpper(kind))
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.SubmissionStatus(strings.ToUpper(status))
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if claims.Role != models.RoleAdmin {
		filter.UserID = claims.UserID
	}

	subs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, pagination)
}

// Get godoc
// @Summary Get submission
// @Description Get one submission; students may only read their own
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sub, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Review godoc
// @Summary Review submission
// @Description Grade a submission and book the points onto the ledger
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.ReviewSubmissionRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/review [put]
func (h *SubmissionHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReviewSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	sub, err := h.service.Review(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Delete godoc
// @Summary Delete submission
// @Description Remove a submission and clear its points
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadToken godoc
// @Summary Request download token
// @Description Issue a signed, expiring token for a submission file
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/download [get]
func (h *SubmissionHandler) DownloadToken(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, err := h.service.DownloadToken(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}

// Download godoc
// @Summary Download file
// @Description Serve a stored file referenced by a signed token
// @Tags Submissions
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files [get]
func (h *SubmissionHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	path, err := h.service.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, "download")
}
