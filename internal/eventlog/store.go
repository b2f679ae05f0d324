package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noesis-run/noesis/internal/chainhash"
	"github.com/noesis-run/noesis/internal/rerr"
)

// fileRecord is the on-disk shape of an event file: the event plus its
// supplementary integrity tag (spec.md §6.1's canonical-JSON event, plus
// the torn-write detector described in SPEC_FULL.md).
type fileRecord struct {
	Event Event  `json:"event"`
	Tag   string `json:"integrity_tag"`
}

// Store is the durable, file-per-event log under <base>/events/.
type Store struct {
	dir     string
	lock    *fileLock
	keyer   *chainhash.IntegrityKeyer
	notify  *notifier
	mu      sync.Mutex // serializes Go-level access from this process; the file lock serializes cross-process access
}

// Open opens (creating if necessary) the event log rooted at baseDir.
func Open(baseDir string) (*Store, error) {
	dir := filepath.Join(baseDir, "events")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create directory: %w", err)
	}

	keyPath := filepath.Join(dir, ".integrity-key")
	seed, err := loadOrCreateIntegritySeed(keyPath)
	if err != nil {
		return nil, err
	}
	keyer, err := chainhash.NewIntegrityKeyer(seed)
	if err != nil {
		return nil, err
	}

	return &Store{
		dir:    dir,
		lock:   newFileLock(filepath.Join(dir, ".lock")),
		keyer:  keyer,
		notify: newNotifier(),
	}, nil
}

func loadOrCreateIntegritySeed(path string) ([]byte, error) {
	if raw, err := os.ReadFile(path); err == nil {
		return raw, nil
	}
	seed := make([]byte, 32)
	if _, err := readRandom(seed); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, seed, 0o600); err != nil {
		return nil, fmt.Errorf("eventlog: persist integrity seed: %w", err)
	}
	return seed, nil
}

// filename returns the fixed-width, zero-padded event filename.
func filename(seq uint64) string {
	return fmt.Sprintf("%06d", seq)
}

// lastSeqAndHash returns the sequence number and hash of the most recently
// appended event, or (0, "") if the log is empty. Caller must hold the lock.
func (s *Store) lastSeqAndHash() (uint64, string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, "", err
	}
	var max uint64
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		n, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return 0, "", nil
	}
	rec, err := s.readRecord(max)
	if err != nil {
		return 0, "", err
	}
	return max, rec.Event.Hash, nil
}

// Append appends a new event of the given type and data, returning the
// stored event. It is the only write primitive in this package; callers
// above (internal/statemanager) are responsible for holding the semantic
// "only through the atomic API" discipline — this function itself always
// acquires the physical lock.
func (s *Store) Append(eventType Type, data map[string]any) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Acquire(); err != nil {
		return Event{}, err
	}
	defer s.lock.Release()

	lastSeq, lastHash, err := s.lastSeqAndHash()
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: read last sequence: %w", err)
	}

	seq := lastSeq + 1
	if seq == 1 && eventType != TypeGenesis {
		return Event{}, rerr.New(rerr.PreconditionViolated, "first event must be GENESIS")
	}

	ev := Event{
		Seq:       seq,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      eventType,
		Data:      data,
		PrevHash:  lastHash,
	}
	hash, err := ev.ComputeHash()
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: compute hash: %w", err)
	}
	ev.Hash = hash

	if err := s.writeRecord(ev); err != nil {
		return Event{}, err
	}

	s.notify.publish(ev)
	return ev, nil
}

func (s *Store) writeRecord(ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshal event: %w", err)
	}
	rec := fileRecord{Event: ev, Tag: s.keyer.Tag(raw)}
	recRaw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("eventlog: marshal record: %w", err)
	}

	path := filepath.Join(s.dir, filename(ev.Seq))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, recRaw, 0o644); err != nil {
		return fmt.Errorf("eventlog: write event file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("eventlog: finalize event file: %w", err)
	}
	return nil
}

func (s *Store) readRecord(seq uint64) (fileRecord, error) {
	path := filepath.Join(s.dir, filename(seq))
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileRecord{}, rerr.MissingEventFile(seq)
	}
	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fileRecord{}, rerr.Wrap(rerr.Corruption, "malformed event file", err).WithDetail("seq", seq)
	}

	eventRaw, err := json.Marshal(rec.Event)
	if err == nil && !s.keyer.Verify(eventRaw, rec.Tag) {
		return fileRecord{}, rerr.ChainCorrupt(fmt.Sprintf("integrity tag mismatch at seq %d", seq))
	}
	return rec, nil
}

// readEventLoose reads the event at seq without enforcing the
// integrity-tag check readRecord applies — used only by VerifyChain, so a
// payload tampered in place still reaches the hash-chain check and is
// reported as the specific link it breaks, rather than surfacing as an
// opaque tag-mismatch Corruption before chain verification even runs.
func (s *Store) readEventLoose(seq uint64) (Event, error) {
	path := filepath.Join(s.dir, filename(seq))
	raw, err := os.ReadFile(path)
	if err != nil {
		return Event{}, rerr.MissingEventFile(seq)
	}
	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Event{}, rerr.Wrap(rerr.Corruption, "malformed event file", err).WithDetail("seq", seq)
	}
	return rec.Event, nil
}

// Load returns all events in sequence order. Lock-free: readers may
// observe a state one commit behind the latest write, which spec.md §5
// allows.
func (s *Store) Load() ([]Event, error) {
	return s.LoadFrom(1)
}

// LoadFrom returns events from seq onward, in order.
func (s *Store) LoadFrom(from uint64) ([]Event, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("eventlog: read directory: %w", err)
	}

	var seqs []uint64
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		n, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		if n >= from {
			seqs = append(seqs, n)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	events := make([]Event, 0, len(seqs))
	for _, n := range seqs {
		rec, err := s.readRecord(n)
		if err != nil {
			return nil, err
		}
		events = append(events, rec.Event)
	}
	return events, nil
}

// VerifyChain checks the five chain-integrity rules of spec.md §4.1 against
// the events currently on disk. It reads events loosely (readEventLoose),
// deliberately bypassing the per-file integrity-tag check Load enforces,
// so a tampered payload is diagnosed by the hash-chain check itself — the
// INV-003 detail scenario S6 expects — rather than short-circuited by an
// earlier, less specific Corruption from the tag mismatch.
func (s *Store) VerifyChain() (bool, string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false, "", fmt.Errorf("eventlog: read directory: %w", err)
	}
	var seqs []uint64
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		n, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, n)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	events := make([]Event, 0, len(seqs))
	for _, n := range seqs {
		ev, err := s.readEventLoose(n)
		if err != nil {
			return false, "", err
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return false, "empty chain", nil
	}

	links := make([]chainhash.ChainLink, len(events))
	for i, e := range events {
		links[i] = e.Link()
	}
	ok, detail := chainhash.VerifyChain(links, func(seq uint64) (string, error) {
		return events[seq-1].ComputeHash()
	})
	return ok, detail, nil
}

// Subscribe registers a channel that receives every newly appended event.
// Used by the websocket stream and the Redis broadcaster; never by
// anything that participates in invariant checking or replay.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.notify.subscribe()
}
