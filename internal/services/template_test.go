package services

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
)

func TestTemplateServiceSave(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.store)
	ctx := context.Background()

	saved, err := svc.SaveTemplate(ctx, &models.Template{
		OrganizationID: "org-1",
		Name:           "Leadership Training",
		PageSettings:   models.PageSettings{Width: 1123, Height: 794},
		Elements: []models.Element{
			{ID: "name", Type: models.ElementText, Content: "{{recipientName}}"},
		},
	})
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("saved template missing id or timestamps: %+v", saved)
	}

	created := saved.CreatedAt
	saved.Name = "Leadership Training II"
	again, err := svc.SaveTemplate(ctx, saved)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !again.CreatedAt.Equal(created) {
		t.Fatalf("update changed CreatedAt")
	}

	if _, err := svc.Publish(ctx, saved.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := svc.SaveTemplate(ctx, saved); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("overwriting a published template: got %v", err)
	}
}

func TestTemplateServiceSaveErrors(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.store)
	ctx := context.Background()

	tests := []struct {
		name string
		tmpl *models.Template
		want func(error) bool
	}{
		{
			name: "missing name",
			tmpl: &models.Template{OrganizationID: "org-1", PageSettings: models.PageSettings{Width: 10, Height: 10}},
			want: apperr.IsValidation,
		},
		{
			name: "bad page size",
			tmpl: &models.Template{OrganizationID: "org-1", Name: "x"},
			want: apperr.IsValidation,
		},
		{
			name: "duplicate element id",
			tmpl: &models.Template{OrganizationID: "org-1", Name: "x", PageSettings: models.PageSettings{Width: 10, Height: 10},
				Elements: []models.Element{{ID: "a", Type: models.ElementText}, {ID: "a", Type: models.ElementShape}}},
			want: apperr.IsValidation,
		},
		{
			name: "unknown organization",
			tmpl: &models.Template{OrganizationID: "nope", Name: "x", PageSettings: models.PageSettings{Width: 10, Height: 10}},
			want: apperr.IsNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveTemplate(ctx, tt.tmpl)
			if !tt.want(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTemplateServicePlaceholders(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.store)
	ctx := context.Background()

	if err := f.store.SaveTemplate(ctx, documentTemplate()); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	got, err := svc.GetPlaceholders(ctx, "tpl-doc")
	if err != nil {
		t.Fatalf("GetPlaceholders: %v", err)
	}
	want := []string{"recipientName", "issueDate", "certificateId", "qrCode"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("placeholders mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.GetPlaceholders(ctx, "missing"); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrganizationService(t *testing.T) {
	svc := NewOrganizationService(NewMemoryStore())
	ctx := context.Background()

	org, err := svc.Create(ctx, CreateOrganizationRequest{Name: " Grace Church ", Code: "gc"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if org.Code != "GC" || org.Name != "Grace Church" || org.ID == "" {
		t.Fatalf("org = %+v", org)
	}
	got, err := svc.Get(ctx, org.ID)
	if err != nil || got.Code != "GC" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	for _, req := range []CreateOrganizationRequest{
		{Name: "", Code: "GC"},
		{Name: "Grace", Code: "G"},
		{Name: "Grace", Code: "G-C"},
		{Name: "Grace", Code: "TOOLONGCODE"},
	} {
		if _, err := svc.Create(ctx, req); !apperr.IsValidation(err) {
			t.Errorf("Create(%+v): expected validation error, got %v", req, err)
		}
	}
}

func TestVerificationLogStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryStore()
	svc := NewVerificationLogService(store, quietLogger())

	results := []*VerificationResult{
		{Valid: true},
		{Valid: true},
		{Reason: ReasonNotFound},
		{Reason: ReasonTampered},
		{Reason: ReasonNotFound},
	}
	for i, r := range results {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/verify-certificate", nil)
		c.Request.Header.Set("User-Agent", "scanner/1.0")
		svc.LogVerification(c, "cert-"+string(rune('a'+i)), r, 12*time.Millisecond)
	}
	svc.Wait()

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := &VerificationStats{
		Total:    5,
		Valid:    2,
		Invalid:  3,
		ByReason: map[string]int{ReasonNotFound: 2, ReasonTampered: 1},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	logs, total, err := svc.GetLogs(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if total != 5 || len(logs) != 2 {
		t.Fatalf("GetLogs = %d logs, total %d", len(logs), total)
	}
	if logs[0].UserAgent != "scanner/1.0" || logs[0].IPAddress == "" || logs[0].ResponseTime != 12 {
		t.Fatalf("log entry = %+v", logs[0])
	}
}
