package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/services"
)

type LogsHandler struct {
	logService *services.VerificationLogService
	log        *logrus.Logger
}

func NewLogsHandler(logService *services.VerificationLogService, log *logrus.Logger) *LogsHandler {
	return &LogsHandler{logService: logService, log: log}
}

type LogsResponse struct {
	Logs       []models.VerificationLog `json:"logs"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	Limit      int                      `json:"limit"`
	TotalPages int                      `json:"total_pages"`
}

// GetVerificationLogs returns verification attempts, newest first.
func (h *LogsHandler) GetVerificationLogs(c *gin.Context) {
	limit, page, offset := pagination(c)

	logs, total, err := h.logService.GetLogs(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if logs == nil {
		logs = []models.VerificationLog{}
	}

	c.JSON(http.StatusOK, LogsResponse{
		Logs:       logs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	})
}

func (h *LogsHandler) GetVerificationStats(c *gin.Context) {
	stats, err := h.logService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
