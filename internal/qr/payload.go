package qr

import (
	"encoding/json"
	"fmt"

	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/security"
)

type certificatePayload struct {
	CertificateID string `json:"certificateId"`
	Recipient     string `json:"recipient"`
	Template      string `json:"template"`
	Issued        string `json:"issued"`
	Signature     string `json:"sig,omitempty"`
	URL           string `json:"url,omitempty"`
}

// BuildPayload returns the string embedded in a certificate's QR code. The
// url mode hands over the verification URL; json embeds the certificate data
// so it can be checked offline.
func BuildPayload(cert *models.IssuedCertificate, mode string) (string, error) {
	switch mode {
	case "", models.QRModeURL:
		return cert.VerificationURL, nil
	case models.QRModeJSON:
		data, err := json.Marshal(certificatePayload{
			CertificateID: cert.ID,
			Recipient:     cert.RecipientName,
			Template:      cert.TemplateName,
			Issued:        security.FormatIssueDate(cert.IssueDate),
			Signature:     cert.SecurityData.Signature,
			URL:           cert.VerificationURL,
		})
		if err != nil {
			return "", fmt.Errorf("failed to marshal qr payload: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unknown qr mode %q", mode)
}
