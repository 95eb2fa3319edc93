package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/service"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

// CertificateHandler exposes completion certificate endpoints.
type CertificateHandler struct {
	service *service.CertificateService
}

// NewCertificateHandler creates a new handler.
func NewCertificateHandler(svc *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{service: svc}
}

// Mine godoc
// @Summary Get own certificate
// @Description Return the caller's completion certificate if issued
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/me [get]
func (h *CertificateHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cert, err := h.service.GetByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// DownloadToken godoc
// @Summary Request certificate download token
// @Description Issue a signed, expiring token for the certificate PDF
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/me/download [get]
func (h *CertificateHandler) DownloadToken(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, err := h.service.DownloadToken(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}

// Get godoc
// @Summary Get a student's certificate
// @Description Return one student's certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/students/{id}/certificate [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	cert, err := h.service.GetByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// Issue godoc
// @Summary Issue certificate
// @Description Issue (or return the existing) certificate for a student who completed the course
// @Tags Certificates
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admin/students/{id}/certificate [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	cert, err := h.service.IssueIfEligible(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// ResendEmail godoc
// @Summary Resend certificate email
// @Description Re-queue the certificate delivery email
// @Tags Certificates
// @Produce json
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/students/{id}/certificate/resend [post]
func (h *CertificateHandler) ResendEmail(c *gin.Context) {
	if err := h.service.ResendEmail(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
