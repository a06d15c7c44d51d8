package models

import "time"

// VerificationLog records one verification attempt, valid or not.
type VerificationLog struct {
	ID            string    `json:"id"`
	CertificateID string    `json:"certificate_id"`
	Valid         bool      `json:"valid"`
	Reason        string    `json:"reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	ResponseTime  int64     `json:"response_time"` // in milliseconds
	CreatedAt     time.Time `json:"created_at"`
}
