package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrObjectNotFound = errors.New("object not found")

type UploadResult struct {
	ObjectName string `json:"object_name"`
	PublicURL  string `json:"public_url"`
	Size       int64  `json:"size"`
}

// ArtifactStore keeps rendered certificate files. DeleteFile on a missing
// object is not an error; ReadFile returns ErrObjectNotFound.
type ArtifactStore interface {
	UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error)
	ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, objectName string) error
}

// CertificateObjectName is where the rendered file of a certificate is cached.
func CertificateObjectName(certificateID, format string) string {
	return fmt.Sprintf("certificates/%s/%s.%s", certificateID, certificateID, strings.ToLower(format))
}
