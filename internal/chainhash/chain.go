package chainhash

import "fmt"

// ChainLink is the minimal shape chain verification needs from an event;
// callers copy these fields out of internal/eventlog.Event values.
type ChainLink struct {
	Seq      uint64
	Type     string
	Hash     string
	PrevHash string
}

// EventPreimage returns the canonical preimage fields hashed to produce an
// event's self-hash. The hash field itself is excluded from its own
// preimage, per spec.
type EventPreimage struct {
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	PrevHash  *string        `json:"prev_hash"`
}

// EventHash computes H(canonical({seq,type,ts,data,prev_hash})).
func EventHash(p EventPreimage) (string, error) {
	return CanonicalHash(p)
}

// VerifyChain walks events in sequence order and checks §4.1's rules:
// event 1 is GENESIS with a nil prev_hash; every subsequent event's
// prev_hash matches the prior event's hash; every event's stored hash
// matches its recomputed hash; sequence numbers are contiguous from 1.
// recompute is supplied by the caller (internal/eventlog) since it alone
// knows how to rebuild an EventPreimage from a stored event.
func VerifyChain(links []ChainLink, recompute func(seq uint64) (string, error)) (bool, string) {
	if len(links) == 0 {
		return false, "empty chain"
	}
	for i, l := range links {
		wantSeq := uint64(i + 1)
		if l.Seq != wantSeq {
			return false, fmt.Sprintf("sequence gap: expected %d, got %d", wantSeq, l.Seq)
		}
		if i == 0 {
			if l.Type != "GENESIS" {
				return false, "first event is not GENESIS"
			}
			if l.PrevHash != "" {
				return false, "GENESIS has non-null prev_hash"
			}
		} else {
			if l.PrevHash != links[i-1].Hash {
				return false, fmt.Sprintf("prev_hash mismatch at seq %d", l.Seq)
			}
		}
		recomputed, err := recompute(l.Seq)
		if err != nil {
			return false, fmt.Sprintf("recompute hash at seq %d: %v", l.Seq, err)
		}
		if recomputed != l.Hash {
			return false, fmt.Sprintf("hash mismatch at seq %d", l.Seq)
		}
	}
	return true, ""
}
