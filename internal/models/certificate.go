package models

import "time"

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

type SecurityLevel string

const (
	LevelBasic    SecurityLevel = "BASIC"
	LevelStandard SecurityLevel = "STANDARD"
	LevelHigh     SecurityLevel = "HIGH"
)

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

type IssuedCertificate struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organizationId"`
	TemplateID      string          `json:"templateId"`
	TemplateName    string          `json:"templateName"`
	RecipientName   string          `json:"recipientName"`
	IssuerName      string          `json:"issuerName"`
	IssueDate       time.Time       `json:"issueDate"`
	ExpiryDate      *time.Time      `json:"expiryDate,omitempty"`
	Status          Status          `json:"status"`
	CustomFields    map[string]any  `json:"customFields,omitempty"`
	SecurityData    SecurityPackage `json:"securityData"`
	VerificationURL string          `json:"verificationUrl"`
	QRPayload       string          `json:"qrPayload"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// EffectiveStatus is the stored status, or expired when an active
// certificate is past its expiry date. The derived state is not persisted.
func (c *IssuedCertificate) EffectiveStatus(now time.Time) Status {
	if c.Status == StatusActive && c.ExpiryDate != nil && now.After(*c.ExpiryDate) {
		return StatusExpired
	}
	return c.Status
}

type SecurityPackage struct {
	Level           SecurityLevel `json:"level"`
	Timestamp       time.Time     `json:"timestamp"`
	Signature       string        `json:"signature,omitempty"`
	Watermark       *Watermark    `json:"watermark,omitempty"`
	BlockchainHash  string        `json:"blockchainHash,omitempty"`
	PreviousHash    string        `json:"previousHash,omitempty"`
	VerificationURL string        `json:"verificationUrl,omitempty"`
}

type Watermark struct {
	Text     string            `json:"text"`
	Hash     string            `json:"hash"`
	Position WatermarkPosition `json:"position"`
}

type WatermarkPosition struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}
