package services

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/models"
)

type VerificationLogService struct {
	store Store
	log   *logrus.Logger
	wg    sync.WaitGroup
}

func NewVerificationLogService(store Store, log *logrus.Logger) *VerificationLogService {
	return &VerificationLogService{store: store, log: log}
}

type VerificationStats struct {
	Total    int64          `json:"total"`
	Valid    int64          `json:"valid"`
	Invalid  int64          `json:"invalid"`
	ByReason map[string]int `json:"by_reason"`
}

// LogVerification records a verification attempt without blocking the
// request.
func (s *VerificationLogService) LogVerification(c *gin.Context, certificateID string, result *VerificationResult, responseTime time.Duration) {
	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = c.Request.RemoteAddr
	}

	entry := &models.VerificationLog{
		ID:            uuid.New().String(),
		CertificateID: certificateID,
		IPAddress:     clientIP,
		UserAgent:     c.Request.UserAgent(),
		ResponseTime:  responseTime.Milliseconds(),
		CreatedAt:     time.Now(),
	}
	if result != nil {
		entry.Valid = result.Valid
		entry.Reason = result.Reason
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.store.SaveVerificationLog(context.Background(), entry); err != nil {
			s.log.WithError(err).WithField("certificate_id", certificateID).Error("failed to save verification log")
		}
	}()
}

// Wait blocks until pending log writes finish.
func (s *VerificationLogService) Wait() {
	s.wg.Wait()
}

func (s *VerificationLogService) GetLogs(ctx context.Context, limit, offset int) ([]models.VerificationLog, int64, error) {
	return s.store.ListVerificationLogs(ctx, limit, offset)
}

func (s *VerificationLogService) Stats(ctx context.Context) (*VerificationStats, error) {
	logs, total, err := s.store.ListVerificationLogs(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	stats := &VerificationStats{Total: total, ByReason: make(map[string]int)}
	for _, l := range logs {
		if l.Valid {
			stats.Valid++
			continue
		}
		stats.Invalid++
		reason := l.Reason
		if reason == "" {
			reason = "unknown"
		}
		stats.ByReason[reason]++
	}
	return stats, nil
}
