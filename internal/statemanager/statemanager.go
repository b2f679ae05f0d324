// Package statemanager is the sole legal mutation surface for the system
// (spec.md §3.3, §4.9). Every other package — catalog, metaops, verifier,
// recovery, agent, coupling, the CLI/RPC adapters — reaches the event log
// and the derived state record only through a Manager.
package statemanager

import (
	"sync"

	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/statemodel"
)

// Manager owns the event log and a cached, replay-derived state. All reads
// and writes serialize through mu so the cache never observes a torn
// append (the underlying log's own file lock protects cross-process
// writers; mu protects concurrent goroutines within this process).
type Manager struct {
	mu    sync.RWMutex
	log   *eventlog.Store
	state statemodel.State
}

// Open loads the event log from baseDir and replays it into the initial
// cached state. The log must already contain at least a GENESIS event;
// instantiation (writing GENESIS) is the caller's responsibility via
// Instantiate.
func Open(baseDir string) (*Manager, error) {
	store, err := eventlog.Open(baseDir)
	if err != nil {
		return nil, err
	}
	m := &Manager{log: store}

	events, err := store.Load()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return m, nil
	}
	state, err := statemodel.Replay(events)
	if err != nil {
		return nil, err
	}
	m.state = state
	return m, nil
}

// Instantiate writes the GENESIS event for a freshly created organization
// and seeds the cached state from it. Callers must check IsInstantiated
// first; Instantiate does not guard against double-genesis itself (the
// log's own seq-1 precondition in eventlog.Store.Append does).
func (m *Manager) Instantiate(data map[string]any) (statemodel.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, err := m.log.Append(eventlog.TypeGenesis, data)
	if err != nil {
		return statemodel.State{}, err
	}
	state, err := statemodel.Replay([]eventlog.Event{ev})
	if err != nil {
		return statemodel.State{}, err
	}
	m.state = state
	return m.state, nil
}

// IsInstantiated reports whether a GENESIS event already exists.
func (m *Manager) IsInstantiated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Memory.EventCount > 0
}

// ReadState returns a copy of the current cached state. Safe for
// concurrent use; never blocks on the event log's file lock.
func (m *Manager) ReadState() statemodel.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// AppendEventAtomic appends an event of the given type and applies the
// corresponding state transition, holding mu for the duration so readers
// never observe the event without the matching state update or vice versa.
// This is the in-place path referenced throughout spec.md §4.3 and §4.9:
// it must produce byte-identical results to replaying the same event onto
// the same prior state, because both call the same statemodel.apply
// switch (invoked here indirectly via statemodel.ApplyOne).
func (m *Manager) AppendEventAtomic(eventType eventlog.Type, data map[string]any) (eventlog.Event, statemodel.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, err := m.log.Append(eventType, data)
	if err != nil {
		return eventlog.Event{}, statemodel.State{}, err
	}
	m.state = statemodel.ApplyOne(m.state, ev)
	return ev, m.state, nil
}

// UpdateState runs f against a fresh read of state purely to decide
// whether to proceed; f must not mutate; the actual mutation happens by
// appending an event through AppendEventAtomic. This two-step shape keeps
// "decide" (read-only, may fail with a precondition error) separate from
// "commit" (atomic), matching the six-step exec contract in §4.7.
func (m *Manager) UpdateState(f func(statemodel.State) (eventlog.Type, map[string]any, error)) (eventlog.Event, statemodel.State, error) {
	current := m.ReadState()
	eventType, data, err := f(current)
	if err != nil {
		return eventlog.Event{}, statemodel.State{}, err
	}
	return m.AppendEventAtomic(eventType, data)
}

// Events exposes the raw log for the verifier's chain-integrity check and
// the recovery engine's rebuild-from-replay step. It is read-only: no
// caller outside this package may append to it directly.
func (m *Manager) Events() ([]eventlog.Event, error) {
	return m.log.Load()
}

// Subscribe streams newly appended events (gateway websocket push,
// broadcast fan-out). Never a read path for replay or invariant checking.
func (m *Manager) Subscribe() (<-chan eventlog.Event, func()) {
	return m.log.Subscribe()
}
