package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/qr"
	"FOM-CERTS/internal/render"
	"FOM-CERTS/internal/services"
)

const downloadURLExpiry = 15 * time.Minute

type IssueResponse struct {
	ID              string `json:"id"`
	VerificationURL string `json:"verificationUrl"`
	QRPayload       string `json:"qrPayload"`
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

type CertificateHandler struct {
	manager *services.CertificateManager
	docs    *services.DocumentService
	log     *logrus.Logger
}

func NewCertificateHandler(manager *services.CertificateManager, docs *services.DocumentService, log *logrus.Logger) *CertificateHandler {
	return &CertificateHandler{manager: manager, docs: docs, log: log}
}

func (h *CertificateHandler) Issue(c *gin.Context) {
	var req services.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	cert, err := h.manager.Issue(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, IssueResponse{
		ID:              cert.ID,
		VerificationURL: cert.VerificationURL,
		QRPayload:       cert.QRPayload,
	})
}

func (h *CertificateHandler) Get(c *gin.Context) {
	cert, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *CertificateHandler) Download(c *gin.Context) {
	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	artifact, err := h.docs.Render(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	sendArtifact(c, artifact, true)
}

func (h *CertificateHandler) DownloadURL(c *gin.Context) {
	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	url, err := h.docs.DownloadURL(c.Request.Context(), c.Param("id"), format, downloadURLExpiry)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_at": time.Now().Add(downloadURLExpiry),
	})
}

// QR serves the certificate's QR code alone, sized for the requested use.
func (h *CertificateHandler) QR(c *gin.Context) {
	format, err := qr.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	cert, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	img, err := qr.Encode(cert.QRPayload, format)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("certificate %s: %w", cert.ID, err))
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", img.PNG)
}

func (h *CertificateHandler) Revoke(c *gin.Context) {
	var req RevokeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	id := c.Param("id")
	ok, err := h.manager.Revoke(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "certificate not found"})
		return
	}

	h.docs.Invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "revoked"})
}

func (h *CertificateHandler) Analytics(c *gin.Context) {
	a, err := h.manager.Analytics(c.Request.Context(), c.Query("orgId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func sendArtifact(c *gin.Context, a *services.Artifact, attachment bool) {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, a.Filename))
	if a.Cached {
		c.Header("X-Cache", "HIT")
	}
	c.Data(http.StatusOK, a.ContentType, a.Data)
}
