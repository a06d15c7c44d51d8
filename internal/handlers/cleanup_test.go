package handlers

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestFileCleanupSweep(t *testing.T) {
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(io.Discard)

	old := filepath.Join(dir, "certificates", "a", "a.pdf")
	fresh := filepath.Join(dir, "certificates", "b", "b.png")
	for _, p := range []string{old, fresh} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	fcs := NewFileCleanupService(dir, 24*time.Hour, log)
	if n := fcs.Sweep(); n != 1 {
		t.Fatalf("removed %d files, want 1", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("stale artifact still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh artifact removed: %v", err)
	}

	missing := NewFileCleanupService(filepath.Join(dir, "nope"), time.Hour, log)
	if n := missing.Sweep(); n != 0 {
		t.Fatalf("sweep of missing dir removed %d", n)
	}
}

func TestFileCleanupStartStop(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	fcs := NewFileCleanupService(t.TempDir(), time.Hour, log)
	fcs.Start()
	fcs.Stop()
}
