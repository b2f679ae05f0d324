package chainhash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOrganizationFingerprintDeterministic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.md"), []byte("bravo"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := OrganizationFingerprint(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := OrganizationFingerprint(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic fingerprint, got %s vs %s", first, second)
	}
}

func TestOrganizationFingerprintChangesOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, err := OrganizationFingerprint(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := OrganizationFingerprint(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before == after {
		t.Fatal("expected fingerprint to change when file content changes")
	}
}

func TestOrganizationFingerprintIndependentOfFileOrder(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	for _, dir := range []string{dirA, dirB} {
		first, second := "one", "two"
		if dir == dirB {
			first, second = "two", "one"
		}
		if err := os.WriteFile(filepath.Join(dir, first+".md"), []byte(first), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, second+".md"), []byte(second), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	a, err := OrganizationFingerprint(dirA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := OrganizationFingerprint(dirB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical fingerprints for identical trees, got %s vs %s", a, b)
	}
}
