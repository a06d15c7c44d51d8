package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
)

// MemoryStore keeps everything in process memory. Records are deep-copied
// on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.Mutex
	organizations map[string]models.Organization
	templates     map[string][]byte
	certificates  map[string][]byte
	order         []string
	sequences     map[string]int
	chainHeads    map[string]string
	logs          []models.VerificationLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		organizations: make(map[string]models.Organization),
		templates:     make(map[string][]byte),
		certificates:  make(map[string][]byte),
		sequences:     make(map[string]int),
		chainHeads:    make(map[string]string),
	}
}

func (m *MemoryStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.organizations[id]
	if !ok {
		return nil, apperr.NotFound("organization", id)
	}
	return &org, nil
}

func (m *MemoryStore) SaveOrganization(ctx context.Context, org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.organizations[org.ID] = *org
	return nil
}

func (m *MemoryStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	m.mu.Lock()
	raw, ok := m.templates[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("template", id)
	}
	var t models.Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	return &t, nil
}

func (m *MemoryStore) SaveTemplate(ctx context.Context, t *models.Template) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = raw
	return nil
}

func (m *MemoryStore) NextSequence(ctx context.Context, orgID, templateID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := orgID + "/" + templateID
	m.sequences[key]++
	return m.sequences[key], nil
}

func (m *MemoryStore) LatestChainHash(ctx context.Context, orgID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainHeads[orgID], nil
}

func (m *MemoryStore) SaveIssuedCertificate(ctx context.Context, cert *models.IssuedCertificate) error {
	raw, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("failed to encode certificate: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.certificates[cert.ID]; exists {
		return fmt.Errorf("certificate %q: %w", cert.ID, apperr.ErrConflict)
	}
	h := cert.SecurityData.BlockchainHash
	if h != "" {
		if err := checkChainHead(cert, m.chainHeads[cert.OrganizationID]); err != nil {
			return err
		}
		m.chainHeads[cert.OrganizationID] = h
	}
	m.certificates[cert.ID] = raw
	m.order = append(m.order, cert.ID)
	return nil
}

func (m *MemoryStore) decodeCertificate(raw []byte) (*models.IssuedCertificate, error) {
	var cert models.IssuedCertificate
	if err := json.Unmarshal(raw, &cert); err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	return &cert, nil
}

func (m *MemoryStore) GetIssuedCertificate(ctx context.Context, id string) (*models.IssuedCertificate, error) {
	m.mu.Lock()
	raw, ok := m.certificates[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("certificate", id)
	}
	return m.decodeCertificate(raw)
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, status models.Status, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.certificates[id]
	if !ok {
		return apperr.NotFound("certificate", id)
	}
	cert, err := m.decodeCertificate(raw)
	if err != nil {
		return err
	}
	cert.Status = status
	if len(fields) > 0 && cert.CustomFields == nil {
		cert.CustomFields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		cert.CustomFields[k] = v
	}
	cert.UpdatedAt = time.Now()

	updated, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("failed to encode certificate: %w", err)
	}
	m.certificates[id] = updated
	return nil
}

func (m *MemoryStore) ListIssuedCertificates(ctx context.Context, orgID string) ([]models.IssuedCertificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	certs := make([]models.IssuedCertificate, 0, len(m.order))
	for _, id := range m.order {
		cert, err := m.decodeCertificate(m.certificates[id])
		if err != nil {
			return nil, err
		}
		if orgID == "" || cert.OrganizationID == orgID {
			certs = append(certs, *cert)
		}
	}
	return certs, nil
}

func (m *MemoryStore) SaveVerificationLog(ctx context.Context, entry *models.VerificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *MemoryStore) ListVerificationLogs(ctx context.Context, limit, offset int) ([]models.VerificationLog, int64, error) {
	m.mu.Lock()
	logs := make([]models.VerificationLog, len(m.logs))
	copy(logs, m.logs)
	m.mu.Unlock()

	sort.SliceStable(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })

	total := int64(len(logs))
	if offset < 0 {
		offset = 0
	}
	if offset > len(logs) {
		offset = len(logs)
	}
	logs = logs[offset:]
	if limit > 0 && limit < len(logs) {
		logs = logs[:limit]
	}
	return logs, total, nil
}
