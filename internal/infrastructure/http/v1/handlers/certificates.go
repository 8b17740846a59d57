package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lms/internal/domain/certificates"
	"lms/internal/infrastructure/http/v1/dto"
)

// CertificateHandler serves certificate issuance and public verification.
type CertificateHandler struct {
	*BaseHandler
	service *certificates.Service
}

// NewCertificateHandler creates a new certificate handler.
func NewCertificateHandler(base *BaseHandler, service *certificates.Service) *CertificateHandler {
	return &CertificateHandler{BaseHandler: base, service: service}
}

// List handles GET /certificates
func (h *CertificateHandler) List(c *gin.Context) {
	f, ok := h.ListFilter(c, "-issued_at")
	if !ok {
		return
	}
	res, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// Get handles GET /certificates/:id
func (h *CertificateHandler) Get(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	cert, err := h.service.GetByID(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cert)
}

// Issue handles POST /certificates
func (h *CertificateHandler) Issue(c *gin.Context) {
	var req dto.IssueCertificateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cert, err := h.service.Issue(c.Request.Context(), req.EnrollmentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cert)
}

// Revoke handles POST /certificates/:id/revoke
func (h *CertificateHandler) Revoke(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	cert, err := h.service.Revoke(c.Request.Context(), key, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cert)
}

// DownloadURL handles GET /certificates/:id/url
func (h *CertificateHandler) DownloadURL(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	url, err := h.service.DownloadURL(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CertificateURLResponse{URL: url})
}

// Document handles GET /certificates/:id/document
func (h *CertificateHandler) Document(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	body, contentType, err := h.service.Document(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

// Verify handles GET /certificates/verify/:code. It is public.
func (h *CertificateHandler) Verify(c *gin.Context) {
	v, err := h.service.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
