package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
)

type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	// Code is the organization part of certificate ids, e.g. "FOM".
	Code string `json:"code" validate:"required,alphanum,min=2,max=8"`
}

type OrganizationService struct {
	store Store
}

func NewOrganizationService(store Store) *OrganizationService {
	return &OrganizationService{store: store}
}

func (s *OrganizationService) Create(ctx context.Context, req CreateOrganizationRequest) (*models.Organization, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := validate.Struct(req); err != nil {
		return nil, apperr.FromValidator(err)
	}

	org := &models.Organization{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Code:      req.Code,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *OrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	return s.store.GetOrganization(ctx, id)
}
