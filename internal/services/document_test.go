package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/render"
	"FOM-CERTS/internal/storage"
)

// fakeRenderer fails the first failures calls with err, then returns out.
type fakeRenderer struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	out      []byte
	lastHTML string
}

func (r *fakeRenderer) Render(ctx context.Context, html string, width, height float64, format render.Format) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastHTML = html
	if r.calls <= r.failures {
		return nil, r.err
	}
	return r.out, nil
}

func (r *fakeRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func documentTemplate() *models.Template {
	return &models.Template{
		ID:             "tpl-doc",
		OrganizationID: "org-1",
		Name:           "Excellence in Mission",
		PageSettings:   models.PageSettings{Width: 1000, Height: 700},
		Elements: []models.Element{
			{ID: "name", Type: models.ElementText, Content: "{{recipientName}}", Position: models.Position{X: 100, Y: 200, Width: 800, Height: 60}, Style: models.Style{FontSize: "40px"}},
			{ID: "date", Type: models.ElementText, Content: "Issued {{issueDate}}", Position: models.Position{X: 100, Y: 300, Width: 800, Height: 30}},
			{ID: "id", Type: models.ElementText, Content: "{{certificateId}}", Position: models.Position{X: 100, Y: 600, Width: 400, Height: 20}},
			{ID: "qr", Type: models.ElementQR, Content: "{{qrCode}}", Position: models.Position{X: 850, Y: 550, Width: 120, Height: 120}},
		},
	}
}

type documentFixture struct {
	*fixture
	renderer  *fakeRenderer
	artifacts *storage.LocalStore
	docs      *DocumentService
	cert      *models.IssuedCertificate
}

func newDocumentFixture(t *testing.T, renderer *fakeRenderer) *documentFixture {
	t.Helper()
	f := newFixture(t)
	if err := f.store.SaveTemplate(context.Background(), documentTemplate()); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	artifacts, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	docs := NewDocumentService(f.store, renderer, artifacts, quietLogger(), DocumentOptions{Locale: "en"})
	cert := f.issue(t, "tpl-doc", "Jane <Doe>")
	return &documentFixture{fixture: f, renderer: renderer, artifacts: artifacts, docs: docs, cert: cert}
}

func TestDocumentRender(t *testing.T) {
	r := &fakeRenderer{out: []byte("%PDF-1.7 fake")}
	f := newDocumentFixture(t, r)
	ctx := context.Background()

	a, err := f.docs.Render(ctx, f.cert.ID, render.FormatPDF)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(a.Data) != "%PDF-1.7 fake" || a.ContentType != "application/pdf" || a.Cached || a.Filename != f.cert.ID+".pdf" {
		t.Fatalf("artifact = %+v", a)
	}

	for _, want := range []string{
		"Jane &lt;Doe&gt;",
		"Issued March 9, 2025",
		f.cert.ID,
		`<img class="qr" src="data:image/png;base64,`,
		`class="watermark"`,
		f.cert.SecurityData.Watermark.Text,
	} {
		if !strings.Contains(r.lastHTML, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}

	again, err := f.docs.Render(ctx, f.cert.ID, render.FormatPDF)
	if err != nil || !again.Cached || string(again.Data) != "%PDF-1.7 fake" {
		t.Fatalf("second render = %+v, %v", again, err)
	}
	if r.Calls() != 1 {
		t.Fatalf("cached render should not call the renderer, calls = %d", r.Calls())
	}
}

func TestDocumentRenderRetry(t *testing.T) {
	renderErr := &apperr.RenderError{Op: "pdf", Err: errors.New("chromium crashed")}
	tests := []struct {
		name      string
		renderer  *fakeRenderer
		wantCalls int
		wantErr   bool
		isRender  bool
	}{
		{"succeeds first time", &fakeRenderer{out: []byte("ok")}, 1, false, false},
		{"retried once", &fakeRenderer{failures: 1, err: renderErr, out: []byte("ok")}, 2, false, false},
		{"fails twice", &fakeRenderer{failures: 2, err: renderErr, out: []byte("ok")}, 2, true, true},
		{"empty output", &fakeRenderer{}, 2, true, true},
		{"other errors are not retried", &fakeRenderer{failures: 5, err: errors.New("boom")}, 1, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDocumentFixture(t, tt.renderer)
			a, err := f.docs.Render(context.Background(), f.cert.ID, render.FormatPNG)
			if got := tt.renderer.Calls(); got != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", got, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.isRender && !apperr.IsRender(err) {
				t.Fatalf("expected RenderError, got %v", err)
			}
			if err == nil && len(a.Data) == 0 {
				t.Fatalf("success must carry bytes")
			}
			if err != nil && a != nil {
				t.Fatalf("failure must not return an artifact")
			}
		})
	}
}

func TestDocumentRenderRevoked(t *testing.T) {
	r := &fakeRenderer{out: []byte("png")}
	f := newDocumentFixture(t, r)
	ctx := context.Background()

	if _, err := f.docs.Render(ctx, f.cert.ID, render.FormatPNG); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := f.manager.Revoke(ctx, f.cert.ID, "duplicate"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	f.docs.Invalidate(ctx, f.cert.ID)

	if _, err := f.artifacts.ReadFile(ctx, storage.CertificateObjectName(f.cert.ID, "png")); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("cached file should be gone, got %v", err)
	}
	if _, err := f.docs.Render(ctx, f.cert.ID, render.FormatPNG); !errors.Is(err, apperr.ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if _, err := f.docs.Render(ctx, "missing", render.FormatPNG); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDocumentPreview(t *testing.T) {
	r := &fakeRenderer{out: []byte("png")}
	f := newDocumentFixture(t, r)

	a, err := f.docs.Preview(context.Background(), "tpl-doc", map[string]any{"recipientName": "Sample Name"}, render.FormatPNG)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if a.Filename != "preview-tpl-doc.png" {
		t.Fatalf("filename = %q", a.Filename)
	}
	if !strings.Contains(r.lastHTML, "Sample Name") || !strings.Contains(r.lastHTML, "data:image/png;base64,") {
		t.Fatalf("preview html missing sample data")
	}
	if strings.Contains(r.lastHTML, "{{") {
		t.Fatalf("preview left tokens in html")
	}
}

func TestDocumentDownloadURLRequiresSigner(t *testing.T) {
	f := newDocumentFixture(t, &fakeRenderer{out: []byte("png")})
	if _, err := f.docs.DownloadURL(context.Background(), f.cert.ID, render.FormatPNG, 0); !errors.Is(err, ErrSignedURLUnsupported) {
		t.Fatalf("expected ErrSignedURLUnsupported, got %v", err)
	}
}

func TestCertificateDataBuiltinsWin(t *testing.T) {
	f := newFixture(t)
	cert, err := f.manager.Issue(context.Background(), IssueRequest{
		OrganizationID: "org-1",
		TemplateID:     "tpl-exc",
		RecipientName:  "Jane Doe",
		CustomFields:   map[string]any{"recipientName": "Spoofed", "ministry": "Youth"},
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	data, err := certificateData(cert, render.FormatPDF)
	if err != nil {
		t.Fatalf("certificateData: %v", err)
	}
	if data["recipientName"] != "Jane Doe" || data["ministry"] != "Youth" || data["certificateId"] != cert.ID {
		t.Fatalf("data = %v", data)
	}
	if _, ok := data["expiryDate"]; ok {
		t.Fatalf("expiryDate must be absent when unset")
	}
	if s, _ := data["qrCode"].(string); !strings.HasPrefix(s, "data:image/png;base64,") {
		t.Fatalf("qrCode = %q", s)
	}
	if data["watermarkText"] != cert.SecurityData.Watermark.Text {
		t.Fatalf("watermark text missing")
	}
}

func TestCertificateDataBuiltinsWinAnyCase(t *testing.T) {
	r := &fakeRenderer{out: []byte("png")}
	f := newDocumentFixture(t, r)
	ctx := context.Background()

	tmpl := documentTemplate()
	tmpl.ID = "tpl-case"
	tmpl.Elements[0].Content = "{{recipientname}} / {{CERTIFICATEID}}"
	if err := f.store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	cert, err := f.manager.Issue(ctx, IssueRequest{
		OrganizationID: "org-1",
		TemplateID:     "tpl-case",
		RecipientName:  "Jane Doe",
		CustomFields: map[string]any{
			"RecipientName": "Spoofed",
			"CertificateID": "FAKE-ID",
			"ExpiryDate":    "never",
			"Ministry":      "Youth",
		},
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	data, err := certificateData(cert, render.FormatPNG)
	if err != nil {
		t.Fatalf("certificateData: %v", err)
	}
	for _, k := range []string{"RecipientName", "CertificateID", "ExpiryDate"} {
		if _, ok := data[k]; ok {
			t.Errorf("custom %s shadows a built-in", k)
		}
	}
	if data["Ministry"] != "Youth" {
		t.Errorf("unrelated custom field dropped: %v", data)
	}

	if _, err := f.docs.Render(ctx, cert.ID, render.FormatPNG); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := "Jane Doe / " + cert.ID; !strings.Contains(r.lastHTML, want) {
		t.Fatalf("rendered html missing %q", want)
	}
	if strings.Contains(r.lastHTML, "Spoofed") || strings.Contains(r.lastHTML, "FAKE-ID") {
		t.Fatalf("custom field overrode a built-in")
	}
}
