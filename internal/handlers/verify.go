package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/services"
)

type VerifyHandler struct {
	manager *services.CertificateManager
	logs    *services.VerificationLogService
	log     *logrus.Logger
}

func NewVerifyHandler(manager *services.CertificateManager, logs *services.VerificationLogService, log *logrus.Logger) *VerifyHandler {
	return &VerifyHandler{manager: manager, logs: logs, log: log}
}

// Verify is the public endpoint behind verification links and QR codes. A
// failed security check is an ordinary invalid answer to the client.
func (h *VerifyHandler) Verify(c *gin.Context) {
	start := time.Now()
	id := c.Query("id")

	result, err := h.manager.Verify(c.Request.Context(), id, c.Query("sig"))
	h.logs.LogVerification(c, id, result, time.Since(start))

	if err != nil && !apperr.IsSecurity(err) {
		h.log.WithError(err).WithField("certificate_id", id).Error("verification failed")
		c.JSON(http.StatusServiceUnavailable, services.VerificationResult{Reason: services.ReasonUnavailable})
		return
	}
	c.JSON(http.StatusOK, result)
}
