package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/qr"
	"FOM-CERTS/internal/security"
)

var validate = validator.New()

// Custom field keys written on revocation.
const (
	FieldRevocationReason = "revocationReason"
	FieldRevokedAt        = "revokedAt"
)

// Verification failure reasons.
const (
	ReasonMissingID      = "certificate id is required"
	ReasonNotFound       = "certificate not found"
	ReasonUnavailable    = "verification unavailable"
	ReasonTampered       = "certificate record has been tampered with"
	ReasonSigMismatch    = "signature mismatch"
	ReasonNotSigned      = "certificate is not signed"
	ReasonChainMismatch  = "hash chain mismatch"
	reasonStatusTemplate = "certificate is %s"
)

type IssueRequest struct {
	// ID is optional; one is generated when empty.
	ID             string         `json:"id,omitempty" validate:"omitempty,max=64"`
	OrganizationID string         `json:"organizationId" validate:"required"`
	TemplateID     string         `json:"templateId" validate:"required"`
	RecipientName  string         `json:"recipientName" validate:"required,max=200"`
	IssuerName     string         `json:"issuerName" validate:"max=200"`
	IssueDate      *time.Time     `json:"issueDate,omitempty"`
	ExpiryDate     *time.Time     `json:"expiryDate,omitempty"`
	CustomFields   map[string]any `json:"customFields,omitempty"`
}

type VerificationResult struct {
	Valid       bool                      `json:"valid"`
	Reason      string                    `json:"reason,omitempty"`
	Status      models.Status             `json:"status,omitempty"`
	Certificate *models.IssuedCertificate `json:"certificate,omitempty"`
}

type Analytics struct {
	OrganizationID string                       `json:"organizationId,omitempty"`
	Total          int                          `json:"total"`
	ByTemplate     map[string]int               `json:"byTemplate"`
	ByStatus       map[models.Status]int        `json:"byStatus"`
	ByLevel        map[models.SecurityLevel]int `json:"bySecurityLevel"`
}

type ManagerOptions struct {
	// OrgCode is used in generated ids when the organization has no code.
	OrgCode string
	Now     func() time.Time
}

// CertificateManager issues, verifies and revokes certificates.
type CertificateManager struct {
	store     Store
	generator *security.Generator
	log       *logrus.Logger
	orgCode   string
	now       func() time.Time

	// chainMu serializes reading and extending the hash chain head.
	chainMu sync.Mutex
}

func NewCertificateManager(store Store, generator *security.Generator, log *logrus.Logger, opts ManagerOptions) *CertificateManager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CertificateManager{
		store:     store,
		generator: generator,
		log:       log,
		orgCode:   opts.OrgCode,
		now:       now,
	}
}

func (m *CertificateManager) Issue(ctx context.Context, req IssueRequest) (*models.IssuedCertificate, error) {
	req.RecipientName = strings.TrimSpace(req.RecipientName)
	req.IssuerName = strings.TrimSpace(req.IssuerName)
	if err := validate.Struct(req); err != nil {
		return nil, apperr.FromValidator(err)
	}

	org, err := m.store.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	tmpl, err := m.store.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl.OrganizationID != "" && tmpl.OrganizationID != org.ID {
		return nil, apperr.Invalid("templateId", "template %s does not belong to organization %s", tmpl.ID, org.ID)
	}

	// The clock is read under chainMu so chained certificates are created
	// in the order they link.
	if security.LevelFor(tmpl.Name) == models.LevelHigh {
		m.chainMu.Lock()
		defer m.chainMu.Unlock()
	}

	now := m.now()
	issueDate := now
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}
	// Dates are kept to whole UTC seconds, the precision the signature covers.
	issueDate = issueDate.UTC().Truncate(time.Second)
	var expiryDate *time.Time
	if req.ExpiryDate != nil {
		exp := req.ExpiryDate.UTC().Truncate(time.Second)
		if !exp.After(issueDate) {
			return nil, apperr.Invalid("expiryDate", "expiry date must be after the issue date")
		}
		expiryDate = &exp
	}

	seq, err := m.store.NextSequence(ctx, org.ID, tmpl.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	id := req.ID
	if id == "" {
		code := org.Code
		if code == "" {
			code = m.orgCode
		}
		if id, err = security.GenerateID(code, tmpl.Name, seq, now); err != nil {
			return nil, fmt.Errorf("failed to generate certificate id: %w", err)
		}
	}

	cert := &models.IssuedCertificate{
		ID:             id,
		OrganizationID: org.ID,
		TemplateID:     tmpl.ID,
		TemplateName:   tmpl.Name,
		RecipientName:  req.RecipientName,
		IssuerName:     req.IssuerName,
		IssueDate:      issueDate,
		ExpiryDate:     expiryDate,
		Status:         models.StatusActive,
		CustomFields:   req.CustomFields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.secure(ctx, cert, tmpl.QRMode); err != nil {
		return nil, err
	}
	if err := m.store.SaveIssuedCertificate(ctx, cert); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"certificate_id": cert.ID,
		"template_id":    cert.TemplateID,
		"org_id":         cert.OrganizationID,
		"security_level": cert.SecurityData.Level,
		"sequence":       seq,
	}).Info("certificate issued")

	return cert, nil
}

// secure attaches the security package and QR payload. Callers issuing
// chained certificates must hold chainMu.
func (m *CertificateManager) secure(ctx context.Context, cert *models.IssuedCertificate, qrMode string) error {
	in := inputFor(cert)
	if security.LevelFor(cert.TemplateName) == models.LevelHigh {
		prev, err := m.store.LatestChainHash(ctx, cert.OrganizationID)
		if err != nil {
			return err
		}
		in.PreviousHash = prev
	}

	cert.SecurityData = m.generator.Generate(in)
	cert.VerificationURL = cert.SecurityData.VerificationURL

	payload, err := qr.BuildPayload(cert, qrMode)
	if err != nil {
		return fmt.Errorf("failed to build qr payload: %w", err)
	}
	cert.QRPayload = payload
	return nil
}

func inputFor(cert *models.IssuedCertificate) security.Input {
	return security.Input{
		CertificateID: cert.ID,
		RecipientName: cert.RecipientName,
		TemplateName:  cert.TemplateName,
		IssueDate:     cert.IssueDate,
		IssuerName:    cert.IssuerName,
		PreviousHash:  cert.SecurityData.PreviousHash,
	}
}

func (m *CertificateManager) Get(ctx context.Context, id string) (*models.IssuedCertificate, error) {
	return m.store.GetIssuedCertificate(ctx, id)
}

// Verify checks a certificate and fails closed. Tampering is reported as a
// *apperr.SecurityError alongside an invalid result.
func (m *CertificateManager) Verify(ctx context.Context, id, signature string) (*VerificationResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return &VerificationResult{Reason: ReasonMissingID}, nil
	}

	cert, err := m.store.GetIssuedCertificate(ctx, id)
	if apperr.IsNotFound(err) {
		return &VerificationResult{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return &VerificationResult{Reason: ReasonUnavailable}, err
	}

	status := cert.EffectiveStatus(m.now())
	if status != models.StatusActive {
		return &VerificationResult{
			Reason:      fmt.Sprintf(reasonStatusTemplate, status),
			Status:      status,
			Certificate: cert,
		}, nil
	}

	if reason := m.integrityFailure(cert, signature); reason != "" {
		m.log.WithFields(logrus.Fields{
			"certificate_id": cert.ID,
			"reason":         reason,
		}).Warn("certificate failed security check")
		return &VerificationResult{Reason: reason, Status: status},
			&apperr.SecurityError{CertificateID: cert.ID, Reason: reason}
	}

	return &VerificationResult{Valid: true, Status: status, Certificate: cert}, nil
}

func (m *CertificateManager) integrityFailure(cert *models.IssuedCertificate, supplied string) string {
	in := inputFor(cert)
	pkg := cert.SecurityData

	if pkg.Signature != "" && !m.generator.VerifySignature(in, pkg.Signature) {
		return ReasonTampered
	}
	if pkg.BlockchainHash != "" && security.ChainHash(pkg.PreviousHash, in) != pkg.BlockchainHash {
		return ReasonChainMismatch
	}
	if !security.IsNoSignature(supplied) {
		if pkg.Signature == "" {
			return ReasonNotSigned
		}
		if !m.generator.VerifySignature(in, supplied) {
			return ReasonSigMismatch
		}
	}
	return ""
}

// Revoke marks a certificate revoked. It reports false when the certificate
// does not exist; revoking twice is a no-op.
func (m *CertificateManager) Revoke(ctx context.Context, id, reason string) (bool, error) {
	cert, err := m.store.GetIssuedCertificate(ctx, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := m.now()
	switch cert.EffectiveStatus(now) {
	case models.StatusRevoked:
		return true, nil
	case models.StatusExpired:
		return false, fmt.Errorf("certificate %s is expired: %w", id, apperr.ErrInvalidTransition)
	}

	fields := map[string]any{
		FieldRevocationReason: strings.TrimSpace(reason),
		FieldRevokedAt:        now.UTC().Format(time.RFC3339),
	}
	if err := m.store.UpdateStatus(ctx, id, models.StatusRevoked, fields); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to revoke certificate: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"certificate_id": id,
		"reason":         reason,
	}).Info("certificate revoked")

	return true, nil
}

// Analytics counts certificates of an organization, or of all
// organizations when orgID is empty. Status is the effective status.
func (m *CertificateManager) Analytics(ctx context.Context, orgID string) (*Analytics, error) {
	certs, err := m.store.ListIssuedCertificates(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	a := &Analytics{
		OrganizationID: orgID,
		Total:          len(certs),
		ByTemplate:     make(map[string]int),
		ByStatus:       make(map[models.Status]int),
		ByLevel:        make(map[models.SecurityLevel]int),
	}
	for i := range certs {
		c := &certs[i]
		a.ByTemplate[c.TemplateID]++
		a.ByStatus[c.EffectiveStatus(now)]++
		level := c.SecurityData.Level
		if level == "" {
			level = models.LevelBasic
		}
		a.ByLevel[level]++
	}
	return a, nil
}
