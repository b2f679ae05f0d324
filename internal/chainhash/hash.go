// Package chainhash provides canonical object hashing and hash-chain
// verification: the single source of content identity for the event log.
package chainhash

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalJSON produces a deterministic JSON encoding of v: maps are
// recursively emitted with lexicographically sorted keys and no
// insignificant whitespace. It is the only function allowed to feed the
// hash in this package.
func CanonicalJSON(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return marshalSorted(normalized)
}

// CanonicalHash returns the SHA-256 digest of CanonicalJSON(v).
func CanonicalHash(v any) (string, error) {
	raw, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum), nil
}

// normalize round-trips v through encoding/json so structs, maps, and
// slices all arrive as the same set of dynamic types (map[string]any,
// []any, string, float64, bool, nil), which marshalSorted then knows how
// to walk uniformly.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("chainhash: marshal for normalization: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("chainhash: unmarshal for normalization: %w", err)
	}
	return out, nil
}

func marshalSorted(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyJSON...)
			buf = append(buf, ':')
			valJSON, err := marshalSorted(t[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, valJSON...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		buf := []byte{'['}
		for i, e := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			elemJSON, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			buf = append(buf, elemJSON...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(t)
	}
}
