package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	name := CertificateObjectName("FOM-2025-APP-0001-ABCD", "PDF")
	if name != "certificates/FOM-2025-APP-0001-ABCD/FOM-2025-APP-0001-ABCD.pdf" {
		t.Fatalf("object name = %q", name)
	}

	res, err := s.UploadFile(ctx, bytes.NewReader([]byte("%PDF-1.7")), name, "application/pdf")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if res.Size != 8 || res.ObjectName != name {
		t.Fatalf("upload result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), filepath.FromSlash(name))); err != nil {
		t.Fatalf("object not written: %v", err)
	}

	rc, err := s.ReadFile(ctx, name)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.7" {
		t.Fatalf("read %q", data)
	}

	if err := s.DeleteFile(ctx, name); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := s.DeleteFile(ctx, name); err != nil {
		t.Fatalf("second DeleteFile: %v", err)
	}
	if _, err := s.ReadFile(ctx, name); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	for _, name := range []string{"../escape.pdf", "certificates/../../x", ""} {
		if _, err := s.UploadFile(context.Background(), bytes.NewReader(nil), name, ""); err == nil {
			t.Errorf("UploadFile(%q) should fail", name)
		}
	}
}
