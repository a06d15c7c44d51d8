package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/processor"
)

type TemplateService struct {
	store Store
}

func NewTemplateService(store Store) *TemplateService {
	return &TemplateService{store: store}
}

// SaveTemplate creates a template or replaces an unpublished one.
func (s *TemplateService) SaveTemplate(ctx context.Context, t *models.Template) (*models.Template, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.OrganizationID != "" {
		if _, err := s.store.GetOrganization(ctx, t.OrganizationID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if t.ID == "" {
		t.ID = uuid.New().String()
		t.CreatedAt = now
	} else {
		existing, err := s.store.GetTemplate(ctx, t.ID)
		switch {
		case err == nil:
			if existing.Published {
				return nil, fmt.Errorf("template %s is published: %w", t.ID, apperr.ErrConflict)
			}
			t.CreatedAt = existing.CreatedAt
		case errors.Is(err, apperr.ErrNotFound):
			t.CreatedAt = now
		default:
			return nil, err
		}
	}
	t.UpdatedAt = now

	if err := s.store.SaveTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	return s.store.GetTemplate(ctx, templateID)
}

// Publish freezes a template so issued certificates keep rendering the same.
func (s *TemplateService) Publish(ctx context.Context, templateID string) (*models.Template, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t.Published {
		return t, nil
	}
	t.Published = true
	t.UpdatedAt = time.Now()
	if err := s.store.SaveTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) GetPlaceholders(ctx context.Context, templateID string) ([]string, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return processor.ExtractPlaceholders(t), nil
}
