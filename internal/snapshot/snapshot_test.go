package snapshot

import (
	"testing"

	"github.com/noesis-run/noesis/internal/statemanager"
)

func newTestManager(t *testing.T) *statemanager.Manager {
	t.Helper()
	sm, err := statemanager.Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sm.Instantiate(map[string]any{"name": "test-org"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sm
}

func TestCreateRejectsUninstantiated(t *testing.T) {
	sm, err := statemanager.Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Create(sm, t.TempDir(), "empty"); err == nil {
		t.Fatal("expected error snapshotting an uninstantiated organization")
	}
}

func TestCreateWritesBundleAndAppendsEvent(t *testing.T) {
	sm := newTestManager(t)
	base := t.TempDir()

	manifest, err := Create(sm, base, "before upgrade")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifest.EventCount != 1 {
		t.Fatalf("expected 1 event in bundle, got %d", manifest.EventCount)
	}

	events, err := sm.Events()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected genesis + snapshot event, got %d", len(events))
	}
	if events[1].Type != "SNAPSHOT" {
		t.Fatalf("expected SNAPSHOT event, got %s", events[1].Type)
	}

	state := sm.ReadState()
	if state.Memory.LastSnapshotAt == nil {
		t.Fatal("expected last_snapshot_at to be set by replay, got nil")
	}
}

func TestListAndRestoreRoundTrip(t *testing.T) {
	sm := newTestManager(t)
	base := t.TempDir()

	manifest, err := Create(sm, base, "checkpoint")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manifests, err := List(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifests) != 1 || manifests[0].ID != manifest.ID {
		t.Fatalf("expected to find the created manifest, got %+v", manifests)
	}

	events, err := Restore(base, manifest.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected bundle to contain 1 event (pre-snapshot state), got %d", len(events))
	}
}

func TestListOnEmptyDirReturnsNil(t *testing.T) {
	manifests, err := List(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifests != nil {
		t.Fatalf("expected nil manifests, got %+v", manifests)
	}
}
