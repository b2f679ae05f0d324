package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendRejectsNonGenesisFirstEvent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Append(TypeStateUpdate, map[string]any{}); err == nil {
		t.Fatal("expected an error for a non-GENESIS first event")
	}
}

func TestAppendChainsHashes(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	genesis, err := s.Append(TypeGenesis, map[string]any{"name": "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if genesis.PrevHash != "" {
		t.Fatalf("expected empty prev_hash for seq 1, got %q", genesis.PrevHash)
	}

	next, err := s.Append(TypeStateUpdate, map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.PrevHash != genesis.Hash {
		t.Fatalf("expected prev_hash to chain to genesis hash, got %q want %q", next.PrevHash, genesis.Hash)
	}
	if next.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", next.Seq)
	}
}

func TestLoadAndLoadFromReturnOrderedEvents(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Append(TypeGenesis, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Append(TypeStateUpdate, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Append(TypeStateUpdate, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for i, ev := range all {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("expected events in order, got seq %d at index %d", ev.Seq, i)
		}
	}

	fromTwo, err := s.LoadFrom(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fromTwo) != 2 || fromTwo[0].Seq != 2 {
		t.Fatalf("expected 2 events starting at seq 2, got %+v", fromTwo)
	}
}

func TestVerifyChainDetectsTamperedHash(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Append(TypeGenesis, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Append(TypeStateUpdate, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, _, err := s.VerifyChain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected an untampered chain to verify")
	}

	path := filepath.Join(dir, "events", filename(1))
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tampered := []byte(strings.Replace(string(raw), `"type":"GENESIS"`, `"type":"STATE_UPDATE"`, 1))
	if string(tampered) == string(raw) {
		t.Fatal("tamper replacement did not match any text in the event file")
	}
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, detail, err := s2.VerifyChain()
	if err != nil {
		t.Fatalf("expected VerifyChain to diagnose the tamper itself, not error out: %v", err)
	}
	if ok {
		t.Fatal("expected a tampered chain to fail verification")
	}
	if detail == "" {
		t.Fatal("expected a detail message identifying the broken link")
	}

	if _, err := s2.Load(); err == nil {
		t.Fatal("expected Load to still reject the tampered file via its integrity-tag check")
	}
}

func TestVerifyChainEmptyLog(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, detail, err := s.VerifyChain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected an empty chain to report unverified")
	}
	if detail == "" {
		t.Fatal("expected a detail message for an empty chain")
	}
}

func TestSubscribeReceivesAppendedEvents(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if _, err := s.Append(TypeGenesis, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != TypeGenesis {
			t.Fatalf("expected GENESIS event, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}
