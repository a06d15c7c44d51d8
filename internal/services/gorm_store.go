package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
)

type organizationRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Code      string `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time
}

func (organizationRecord) TableName() string { return "organizations" }

type templateRecord struct {
	ID             string `gorm:"primaryKey"`
	OrganizationID string `gorm:"index"`
	Name           string `gorm:"not null"`
	Definition     string `gorm:"type:json"` // full template as JSON
	Published      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (templateRecord) TableName() string { return "templates" }

type certificateRecord struct {
	ID              string `gorm:"primaryKey"`
	OrganizationID  string `gorm:"not null;index"`
	TemplateID      string `gorm:"not null;index"`
	TemplateName    string
	RecipientName   string `gorm:"not null"`
	IssuerName      string
	IssueDate       time.Time
	ExpiryDate      *time.Time
	Status          string `gorm:"type:varchar(16);not null"`
	SecurityLevel   string `gorm:"type:varchar(16)"`
	CustomFields    string `gorm:"type:json"`
	SecurityData    string `gorm:"type:json"`
	ChainHash       string `gorm:"type:varchar(64);index"`
	VerificationURL string
	QRPayload       string `gorm:"column:qr_payload"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (certificateRecord) TableName() string { return "issued_certificates" }

type sequenceRecord struct {
	OrganizationID string `gorm:"primaryKey"`
	TemplateID     string `gorm:"primaryKey"`
	Value          int    `gorm:"not null"`
}

func (sequenceRecord) TableName() string { return "sequences" }

type chainHeadRecord struct {
	OrganizationID string `gorm:"primaryKey"`
	Hash           string `gorm:"type:varchar(64);not null"`
	CertificateID  string `gorm:"type:varchar(64)"`
	UpdatedAt      time.Time
}

func (chainHeadRecord) TableName() string { return "chain_heads" }

type verificationLogRecord struct {
	ID            string `gorm:"primaryKey"`
	CertificateID string `gorm:"index"`
	Valid         bool
	Reason        string
	IPAddress     string
	UserAgent     string
	ResponseTime  int64
	CreatedAt     time.Time `gorm:"index"`
}

func (verificationLogRecord) TableName() string { return "verification_logs" }

// GormStore persists to MySQL through gorm. Structured fields are kept in
// JSON columns.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(kind, id)
	}
	return fmt.Errorf("failed to load %s: %w", kind, err)
}

func (s *GormStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var rec organizationRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "organization", id)
	}
	return &models.Organization{ID: rec.ID, Name: rec.Name, Code: rec.Code, CreatedAt: rec.CreatedAt}, nil
}

func (s *GormStore) SaveOrganization(ctx context.Context, org *models.Organization) error {
	rec := organizationRecord{ID: org.ID, Name: org.Name, Code: org.Code, CreatedAt: org.CreatedAt}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}
	return nil
}

func (s *GormStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var rec templateRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "template", id)
	}
	var t models.Template
	if err := json.Unmarshal([]byte(rec.Definition), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}
	t.ID = rec.ID
	t.Published = rec.Published
	return &t, nil
}

func (s *GormStore) SaveTemplate(ctx context.Context, t *models.Template) error {
	definition, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	rec := templateRecord{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		Name:           t.Name,
		Definition:     string(definition),
		Published:      t.Published,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// NextSequence seeds the counter row if needed, then increments it under a
// row lock so concurrent issuers serialize on the pair.
func (s *GormStore) NextSequence(ctx context.Context, orgID, templateID string) (int, error) {
	var next int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := sequenceRecord{OrganizationID: orgID, TemplateID: templateID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to seed sequence: %w", err)
		}

		var rec sequenceRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ? AND template_id = ?", orgID, templateID).
			First(&rec).Error; err != nil {
			return fmt.Errorf("failed to lock sequence: %w", err)
		}

		next = rec.Value + 1
		if err := tx.Model(&sequenceRecord{}).
			Where("organization_id = ? AND template_id = ?", orgID, templateID).
			Update("value", next).Error; err != nil {
			return fmt.Errorf("failed to advance sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *GormStore) LatestChainHash(ctx context.Context, orgID string) (string, error) {
	var head chainHeadRecord
	err := s.db.WithContext(ctx).First(&head, "organization_id = ?", orgID).Error
	if err == nil {
		return head.Hash, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load chain head: %w", err)
	}
	return legacyChainHead(s.db.WithContext(ctx), orgID)
}

// legacyChainHead finds the head of chains written before chain_heads
// existed.
func legacyChainHead(db *gorm.DB, orgID string) (string, error) {
	var rec certificateRecord
	err := db.Select("chain_hash").
		Where("organization_id = ? AND chain_hash <> ''", orgID).
		Order("created_at DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load chain head: %w", err)
	}
	return rec.ChainHash, nil
}

// advanceChainHead moves the organization's head to cert under a row lock,
// so issuers in other processes cannot fork the chain.
func advanceChainHead(tx *gorm.DB, cert *models.IssuedCertificate) error {
	orgID := cert.OrganizationID
	lock := func(head *chainHeadRecord) error {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(head, "organization_id = ?", orgID).Error
	}

	var head chainHeadRecord
	err := lock(&head)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		current, lerr := legacyChainHead(tx, orgID)
		if lerr != nil {
			return lerr
		}
		seed := chainHeadRecord{OrganizationID: orgID, Hash: current, UpdatedAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to seed chain head: %w", err)
		}
		err = lock(&head)
	}
	if err != nil {
		return fmt.Errorf("failed to lock chain head: %w", err)
	}
	if err := checkChainHead(cert, head.Hash); err != nil {
		return err
	}

	return tx.Model(&chainHeadRecord{}).Where("organization_id = ?", orgID).Updates(map[string]any{
		"hash":           cert.SecurityData.BlockchainHash,
		"certificate_id": cert.ID,
		"updated_at":     time.Now(),
	}).Error
}

func toCertificateRecord(cert *models.IssuedCertificate) (*certificateRecord, error) {
	custom, err := json.Marshal(cert.CustomFields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal custom fields: %w", err)
	}
	security, err := json.Marshal(cert.SecurityData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal security data: %w", err)
	}
	return &certificateRecord{
		ID:              cert.ID,
		OrganizationID:  cert.OrganizationID,
		TemplateID:      cert.TemplateID,
		TemplateName:    cert.TemplateName,
		RecipientName:   cert.RecipientName,
		IssuerName:      cert.IssuerName,
		IssueDate:       cert.IssueDate,
		ExpiryDate:      cert.ExpiryDate,
		Status:          string(cert.Status),
		SecurityLevel:   string(cert.SecurityData.Level),
		CustomFields:    string(custom),
		SecurityData:    string(security),
		ChainHash:       cert.SecurityData.BlockchainHash,
		VerificationURL: cert.VerificationURL,
		QRPayload:       cert.QRPayload,
		CreatedAt:       cert.CreatedAt,
		UpdatedAt:       cert.UpdatedAt,
	}, nil
}

func (r *certificateRecord) toModel() (*models.IssuedCertificate, error) {
	cert := &models.IssuedCertificate{
		ID:              r.ID,
		OrganizationID:  r.OrganizationID,
		TemplateID:      r.TemplateID,
		TemplateName:    r.TemplateName,
		RecipientName:   r.RecipientName,
		IssuerName:      r.IssuerName,
		IssueDate:       r.IssueDate,
		ExpiryDate:      r.ExpiryDate,
		Status:          models.Status(r.Status),
		VerificationURL: r.VerificationURL,
		QRPayload:       r.QRPayload,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.CustomFields != "" {
		if err := json.Unmarshal([]byte(r.CustomFields), &cert.CustomFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom fields: %w", err)
		}
	}
	if r.SecurityData != "" {
		if err := json.Unmarshal([]byte(r.SecurityData), &cert.SecurityData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal security data: %w", err)
		}
	}
	return cert, nil
}

func (s *GormStore) SaveIssuedCertificate(ctx context.Context, cert *models.IssuedCertificate) error {
	rec, err := toCertificateRecord(cert)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.ChainHash != "" {
			if err := advanceChainHead(tx, cert); err != nil {
				return err
			}
		}
		if err := tx.Create(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("certificate %q: %w", cert.ID, apperr.ErrConflict)
			}
			return fmt.Errorf("failed to save certificate: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetIssuedCertificate(ctx context.Context, id string) (*models.IssuedCertificate, error) {
	var rec certificateRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "certificate", id)
	}
	return rec.toModel()
}

func (s *GormStore) UpdateStatus(ctx context.Context, id string, status models.Status, fields map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec certificateRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error; err != nil {
			return notFound(err, "certificate", id)
		}

		custom := map[string]any{}
		if rec.CustomFields != "" && rec.CustomFields != "null" {
			if err := json.Unmarshal([]byte(rec.CustomFields), &custom); err != nil {
				return fmt.Errorf("failed to unmarshal custom fields: %w", err)
			}
		}
		for k, v := range fields {
			custom[k] = v
		}
		encoded, err := json.Marshal(custom)
		if err != nil {
			return fmt.Errorf("failed to marshal custom fields: %w", err)
		}

		return tx.Model(&certificateRecord{}).Where("id = ?", id).Updates(map[string]any{
			"status":        string(status),
			"custom_fields": string(encoded),
			"updated_at":    time.Now(),
		}).Error
	})
}

func (s *GormStore) ListIssuedCertificates(ctx context.Context, orgID string) ([]models.IssuedCertificate, error) {
	var recs []certificateRecord
	query := s.db.WithContext(ctx).Order("created_at ASC")
	if orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	certs := make([]models.IssuedCertificate, 0, len(recs))
	for i := range recs {
		cert, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		certs = append(certs, *cert)
	}
	return certs, nil
}

func (s *GormStore) SaveVerificationLog(ctx context.Context, entry *models.VerificationLog) error {
	rec := verificationLogRecord{
		ID:            entry.ID,
		CertificateID: entry.CertificateID,
		Valid:         entry.Valid,
		Reason:        entry.Reason,
		IPAddress:     entry.IPAddress,
		UserAgent:     entry.UserAgent,
		ResponseTime:  entry.ResponseTime,
		CreatedAt:     entry.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save verification log: %w", err)
	}
	return nil
}

func (s *GormStore) ListVerificationLogs(ctx context.Context, limit, offset int) ([]models.VerificationLog, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&verificationLogRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var recs []verificationLogRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}

	logs := make([]models.VerificationLog, 0, len(recs))
	for _, r := range recs {
		logs = append(logs, models.VerificationLog{
			ID:            r.ID,
			CertificateID: r.CertificateID,
			Valid:         r.Valid,
			Reason:        r.Reason,
			IPAddress:     r.IPAddress,
			UserAgent:     r.UserAgent,
			ResponseTime:  r.ResponseTime,
			CreatedAt:     r.CreatedAt,
		})
	}
	return logs, total, nil
}
