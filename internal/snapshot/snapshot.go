// Package snapshot writes and restores on-disk bundles of the event log,
// the collaborator-managed tooling spec.md §2 Non-goals calls out as
// out of scope for the core — this package is the thin file-layout
// piece cmd/noesisctl needs to honor `snapshot_create/list/restore`.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/statemanager"
)

// Manifest describes one snapshot bundle under snapshots/<id>/.
type Manifest struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	EventCount  int       `json:"event_count"`
	LastHash    string    `json:"last_hash"`
}

// Create writes events.json + manifest.json under baseDir/snapshots/<id>
// and appends a SNAPSHOT event (the only state change a snapshot makes —
// updating last_snapshot_at, per spec.md §4 event-effects table).
func Create(sm *statemanager.Manager, baseDir, description string) (Manifest, error) {
	events, err := sm.Events()
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: read events: %w", err)
	}
	if len(events) == 0 {
		return Manifest{}, fmt.Errorf("snapshot: cannot snapshot an uninstantiated organization")
	}

	id := fmt.Sprintf("snap-%d", events[len(events)-1].Seq)
	dir := filepath.Join(baseDir, "snapshots", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: mkdir: %w", err)
	}

	raw, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: marshal events: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "events.json"), raw, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: write events.json: %w", err)
	}

	manifest := Manifest{
		ID:          id,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		EventCount:  len(events),
		LastHash:    events[len(events)-1].Hash,
	}
	mraw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), mraw, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: write manifest.json: %w", err)
	}

	if _, _, err := sm.AppendEventAtomic(eventlog.TypeSnapshot, map[string]any{
		"snapshot_id": id,
		"description": description,
	}); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: append event: %w", err)
	}

	return manifest, nil
}

// List returns every manifest under baseDir/snapshots, newest first.
func List(baseDir string) ([]Manifest, error) {
	root := filepath.Join(baseDir, "snapshots")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read dir: %w", err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(root, entry.Name(), "manifest.json"))
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].CreatedAt.After(manifests[j].CreatedAt) })
	return manifests, nil
}

// Restore reads a bundle's events.json and returns its events, without
// replaying them or touching the live event log — callers decide whether
// to treat this as a read-only preview or feed it into a fresh store.
func Restore(baseDir, id string) ([]eventlog.Event, error) {
	raw, err := os.ReadFile(filepath.Join(baseDir, "snapshots", id, "events.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read bundle %s: %w", id, err)
	}
	var events []eventlog.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("snapshot: decode bundle %s: %w", id, err)
	}
	return events, nil
}
