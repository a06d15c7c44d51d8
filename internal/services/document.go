package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"FOM-CERTS/internal/apperr"
	"FOM-CERTS/internal/layout"
	"FOM-CERTS/internal/models"
	"FOM-CERTS/internal/processor"
	"FOM-CERTS/internal/qr"
	"FOM-CERTS/internal/render"
	"FOM-CERTS/internal/storage"
)

const renderAttempts = 2

var ErrSignedURLUnsupported = errors.New("artifact store does not issue signed urls")

type urlSigner interface {
	GetSignedURL(objectName string, expiry time.Duration) (string, error)
}

// Artifact is a rendered certificate or preview file.
type Artifact struct {
	Data        []byte
	Format      render.Format
	ContentType string
	Filename    string
	Cached      bool
}

type DocumentOptions struct {
	// Locale is the default date locale; a "locale" custom field overrides it.
	Locale string
}

type DocumentService struct {
	store     Store
	renderer  render.Renderer
	artifacts storage.ArtifactStore
	log       *logrus.Logger
	opts      DocumentOptions
}

// NewDocumentService wires the render pipeline. artifacts may be nil, in
// which case nothing is cached.
func NewDocumentService(store Store, renderer render.Renderer, artifacts storage.ArtifactStore, log *logrus.Logger, opts DocumentOptions) *DocumentService {
	return &DocumentService{
		store:     store,
		renderer:  renderer,
		artifacts: artifacts,
		log:       log,
		opts:      opts,
	}
}

// Render produces the downloadable file of an issued certificate.
func (s *DocumentService) Render(ctx context.Context, certID string, format render.Format) (*Artifact, error) {
	cert, err := s.store.GetIssuedCertificate(ctx, certID)
	if err != nil {
		return nil, err
	}
	if cert.Status == models.StatusRevoked {
		return nil, fmt.Errorf("certificate %s: %w", certID, apperr.ErrRevoked)
	}

	objectName := storage.CertificateObjectName(cert.ID, string(format))
	if data, ok := s.cached(ctx, objectName); ok {
		return &Artifact{
			Data:        data,
			Format:      format,
			ContentType: format.ContentType(),
			Filename:    cert.ID + "." + string(format),
			Cached:      true,
		}, nil
	}

	tmpl, err := s.store.GetTemplate(ctx, cert.TemplateID)
	if err != nil {
		return nil, err
	}

	data, err := certificateData(cert, format)
	if err != nil {
		return nil, err
	}

	out, err := s.renderTemplate(ctx, tmpl, data, format, cert.SecurityData.Watermark)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"certificate_id": cert.ID,
			"format":         format,
		}).Error("certificate render failed")
		return nil, err
	}

	if s.artifacts != nil {
		if _, err := s.artifacts.UploadFile(ctx, bytes.NewReader(out), objectName, format.ContentType()); err != nil {
			s.log.WithError(err).WithField("object", objectName).Warn("failed to cache rendered certificate")
		}
	}

	return &Artifact{
		Data:        out,
		Format:      format,
		ContentType: format.ContentType(),
		Filename:    cert.ID + "." + string(format),
	}, nil
}

// DownloadURL renders the certificate if needed and returns a signed link
// to the cached file.
func (s *DocumentService) DownloadURL(ctx context.Context, certID string, format render.Format, expiry time.Duration) (string, error) {
	signer, ok := s.artifacts.(urlSigner)
	if !ok {
		return "", ErrSignedURLUnsupported
	}
	if _, err := s.Render(ctx, certID, format); err != nil {
		return "", err
	}
	return signer.GetSignedURL(storage.CertificateObjectName(certID, string(format)), expiry)
}

// Preview renders a template with caller-supplied sample data.
func (s *DocumentService) Preview(ctx context.Context, templateID string, data map[string]any, format render.Format) (*Artifact, error) {
	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	sample := make(map[string]any, len(data)+1)
	for k, v := range data {
		sample[k] = v
	}
	if _, ok := sample["qrCode"]; !ok {
		payload, _ := sample["qrPayload"].(string)
		if payload == "" {
			payload = "PREVIEW-" + tmpl.ID
		}
		img, err := qr.Encode(payload, qr.FormatPreview)
		if err != nil {
			return nil, apperr.Invalid("qrPayload", "%v", err)
		}
		sample["qrCode"] = img.DataURI()
	}

	out, err := s.renderTemplate(ctx, tmpl, sample, format, nil)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Data:        out,
		Format:      format,
		ContentType: format.ContentType(),
		Filename:    "preview-" + tmpl.ID + "." + string(format),
	}, nil
}

// Invalidate drops cached files of a certificate.
func (s *DocumentService) Invalidate(ctx context.Context, certID string) {
	if s.artifacts == nil {
		return
	}
	for _, f := range []render.Format{render.FormatPDF, render.FormatPNG} {
		name := storage.CertificateObjectName(certID, string(f))
		if err := s.artifacts.DeleteFile(ctx, name); err != nil {
			s.log.WithError(err).WithField("object", name).Warn("failed to delete cached certificate")
		}
	}
}

func (s *DocumentService) cached(ctx context.Context, objectName string) ([]byte, bool) {
	if s.artifacts == nil {
		return nil, false
	}
	rc, err := s.artifacts.ReadFile(ctx, objectName)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			s.log.WithError(err).WithField("object", objectName).Warn("failed to read cached certificate")
		}
		return nil, false
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Resolve runs substitution and layout fitting without rendering.
func (s *DocumentService) Resolve(tmpl *models.Template, data map[string]any) (*processor.Document, error) {
	locale := s.opts.Locale
	if l, ok := data["locale"].(string); ok && l != "" {
		locale = l
	}
	doc, err := processor.NewEngine(processor.Options{Locale: locale}).Resolve(tmpl, data)
	if err != nil {
		return nil, err
	}
	layout.Apply(doc)
	return doc, nil
}

func (s *DocumentService) renderTemplate(ctx context.Context, tmpl *models.Template, data map[string]any, format render.Format, wm *models.Watermark) ([]byte, error) {
	doc, err := s.Resolve(tmpl, data)
	if err != nil {
		return nil, err
	}
	html := render.HTML(doc, render.HTMLOptions{Title: tmpl.Name, Watermark: wm})
	return s.renderWithRetry(ctx, html, doc.Width, doc.Height, format)
}

// renderWithRetry gives the render bridge one more try after a RenderError.
func (s *DocumentService) renderWithRetry(ctx context.Context, html string, width, height float64, format render.Format) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= renderAttempts; attempt++ {
		out, err := s.renderer.Render(ctx, html, width, height, format)
		if err == nil && len(out) > 0 {
			return out, nil
		}
		if err == nil {
			err = &apperr.RenderError{Op: string(format), Err: errors.New("empty output")}
		}
		lastErr = err
		if !apperr.IsRender(err) || ctx.Err() != nil {
			break
		}
		s.log.WithError(err).Warnf("render attempt %d/%d failed", attempt, renderAttempts)
	}
	return nil, lastErr
}

// certificateData is the substitution data of an issued certificate. Built-in
// fields take precedence over custom fields of the same name.
// builtinFields are the certificate keys custom fields cannot override.
// Scope lookups fold case, so the match is case-insensitive.
var builtinFields = []string{
	"recipientName", "issuerName", "issueDate", "expiryDate", "certificateId",
	"verificationUrl", "templateName", "securityLevel", "watermarkText",
}

func isBuiltinField(key string) bool {
	for _, b := range builtinFields {
		if strings.EqualFold(key, b) {
			return true
		}
	}
	return false
}

func certificateData(cert *models.IssuedCertificate, format render.Format) (map[string]any, error) {
	data := make(map[string]any, len(cert.CustomFields)+10)
	for k, v := range cert.CustomFields {
		if isBuiltinField(k) {
			continue
		}
		data[k] = v
	}

	data["recipientName"] = cert.RecipientName
	data["issuerName"] = cert.IssuerName
	data["issueDate"] = cert.IssueDate
	data["certificateId"] = cert.ID
	data["verificationUrl"] = cert.VerificationURL
	data["templateName"] = cert.TemplateName
	data["securityLevel"] = string(cert.SecurityData.Level)
	if cert.ExpiryDate != nil {
		data["expiryDate"] = *cert.ExpiryDate
	}
	if wm := cert.SecurityData.Watermark; wm != nil {
		data["watermarkText"] = wm.Text
	}

	if cert.QRPayload != "" {
		qf := qr.FormatPNG
		if format == render.FormatPDF {
			qf = qr.FormatPDF
		}
		img, err := qr.Encode(cert.QRPayload, qf)
		if err != nil {
			return nil, fmt.Errorf("failed to encode qr code: %w", err)
		}
		data["qrCode"] = img.DataURI()
	}

	return data, nil
}
