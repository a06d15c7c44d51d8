package services

import (
	"context"
	"fmt"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/security"
)

// Store is the persistence layer used by the services. Lookups of missing
// records return an error wrapping apperr.ErrNotFound.
type Store interface {
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	SaveOrganization(ctx context.Context, org *models.Organization) error

	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	SaveTemplate(ctx context.Context, t *models.Template) error

	// NextSequence atomically increments and returns the issuance counter
	// of an (organization, template) pair. The first call returns 1.
	NextSequence(ctx context.Context, orgID, templateID string) (int, error)
	// LatestChainHash is the head of the organization's hash chain, or ""
	// when no chained certificate exists yet.
	LatestChainHash(ctx context.Context, orgID string) (string, error)

	// SaveIssuedCertificate inserts a new record; an existing id yields
	// apperr.ErrConflict. A chained certificate also advances the chain head
	// and fails with apperr.ErrConflict when its previous hash is no longer
	// the head.
	SaveIssuedCertificate(ctx context.Context, cert *models.IssuedCertificate) error
	GetIssuedCertificate(ctx context.Context, id string) (*models.IssuedCertificate, error)
	// UpdateStatus sets the status and merges fields into the custom fields.
	UpdateStatus(ctx context.Context, id string, status models.Status, fields map[string]any) error
	ListIssuedCertificates(ctx context.Context, orgID string) ([]models.IssuedCertificate, error)

	SaveVerificationLog(ctx context.Context, entry *models.VerificationLog) error
	ListVerificationLogs(ctx context.Context, limit, offset int) ([]models.VerificationLog, int64, error)
}

// checkChainHead reports a conflict when cert does not extend head.
func checkChainHead(cert *models.IssuedCertificate, head string) error {
	prev := cert.SecurityData.PreviousHash
	if prev == security.GenesisHash {
		prev = ""
	}
	if prev != head {
		return fmt.Errorf("certificate %q: chain head moved: %w", cert.ID, apperr.ErrConflict)
	}
	return nil
}
