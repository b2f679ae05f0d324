package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/noesis-run/noesis/internal/rerr"
)

const (
	lockTimeout  = 5 * time.Second
	lockSpinWait = 50 * time.Millisecond
)

type lockPayload struct {
	HolderID  string    `json:"holder_id"`
	Timestamp time.Time `json:"timestamp"`
}

// fileLock is the advisory exclusive-write lock of spec.md §4.2: acquire by
// attempting an exclusive create; on contention, spin-wait up to the
// timeout, evicting a lock file that has gone stale.
type fileLock struct {
	path     string
	holderID string
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path, holderID: uuid.NewString()}
}

// Acquire blocks until the lock is held or the 5s budget expires.
func (l *fileLock) Acquire() error {
	deadline := time.Now().Add(lockTimeout)
	for {
		ok, err := l.tryCreate()
		if err != nil {
			return fmt.Errorf("eventlog: acquire lock: %w", err)
		}
		if ok {
			return nil
		}

		if l.evictIfStale() {
			continue
		}

		if time.Now().After(deadline) {
			return rerr.LockTimeout(l.path)
		}
		time.Sleep(lockSpinWait)
	}
}

func (l *fileLock) tryCreate() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	payload := lockPayload{HolderID: l.holderID, Timestamp: time.Now().UTC()}
	enc := json.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		return false, err
	}
	return true, nil
}

// evictIfStale removes the lock file if its recorded timestamp is older
// than the timeout, returning true if it evicted (and the caller should
// retry the create immediately rather than sleeping first).
func (l *fileLock) evictIfStale() bool {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	var payload lockPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Corrupt lock payload: treat conservatively as stale so a crashed
		// writer can't wedge the log forever.
		_ = os.Remove(l.path)
		return true
	}
	if time.Since(payload.Timestamp) > lockTimeout {
		_ = os.Remove(l.path)
		return true
	}
	return false
}

// Release removes the lock file. Best-effort: a failed release here is
// resolved by the next acquirer's stale-eviction check.
func (l *fileLock) Release() {
	_ = os.Remove(l.path)
}
