// Package eventlog implements the append-only, hash-linked event store
// (spec.md §3.1, §4.2, §6.1): one file per event under events/, guarded by
// an advisory lock file with stale-eviction.
package eventlog

import "github.com/noesis-run/noesis/internal/chainhash"

// Type is one of the closed set of event type tags (spec.md §3.1).
type Type string

const (
	TypeGenesis              Type = "GENESIS"
	TypeSessionStart         Type = "SESSION_START"
	TypeSessionEnd           Type = "SESSION_END"
	TypeStateUpdate          Type = "STATE_UPDATE"
	TypeOperation            Type = "OPERATION"
	TypeBlock                Type = "BLOCK"
	TypeVerification         Type = "VERIFICATION"
	TypeSnapshot             Type = "SNAPSHOT"
	TypeLearning             Type = "LEARNING"
	TypeMetaOperation        Type = "META_OPERATION"
	TypeAgentWake            Type = "AGENT_WAKE"
	TypeAgentSleep           Type = "AGENT_SLEEP"
	TypeAgentResponse        Type = "AGENT_RESPONSE"
	TypeAgentRest            Type = "AGENT_REST"
	TypeAgentUltrastability  Type = "AGENT_ULTRASTABILITY"
)

// Event is an immutable, hash-linked record (spec.md §3.1).
type Event struct {
	Seq       uint64         `json:"seq"`
	Timestamp string         `json:"timestamp"` // ISO-8601 UTC
	Type      Type           `json:"type"`
	Data      map[string]any `json:"data"`
	PrevHash  string         `json:"prev_hash"` // "" only for seq 1
	Hash      string         `json:"hash"`
}

// preimage builds the chainhash.EventPreimage this event's hash covers.
func (e Event) preimage() chainhash.EventPreimage {
	var prev *string
	if e.PrevHash != "" {
		p := e.PrevHash
		prev = &p
	}
	return chainhash.EventPreimage{
		Seq:       e.Seq,
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		Data:      e.Data,
		PrevHash:  prev,
	}
}

// ComputeHash recomputes this event's self-hash from its preimage.
func (e Event) ComputeHash() (string, error) {
	return chainhash.EventHash(e.preimage())
}

// Link adapts Event to chainhash.ChainLink for chain verification.
func (e Event) Link() chainhash.ChainLink {
	return chainhash.ChainLink{Seq: e.Seq, Type: string(e.Type), Hash: e.Hash, PrevHash: e.PrevHash}
}
