// Package rerr provides the runtime's error taxonomy: five kinds, keyed not
// by name but by what a caller should do about them (retry, escalate to an
// operator, or accept the refusal and move on).
package rerr

import (
	"errors"
	"fmt"
)

// Kind is one of the five error kinds named in spec.md §7.
type Kind string

const (
	// PreconditionViolated — refused before any side effect: unknown
	// operation, coupling required, insufficient energy, Sigillo-3 bounds
	// violation, self-production cap reached, failed admission check.
	PreconditionViolated Kind = "precondition_violated"

	// IntegrityViolation — an invariant failed during verification.
	IntegrityViolation Kind = "integrity_violation"

	// Contention — lock acquisition timed out; transient, retry with jitter.
	Contention Kind = "contention"

	// Corruption — chain self-hash mismatch, missing event file, malformed
	// JSON. Not automatically recoverable; requires operator action.
	Corruption Kind = "corruption"

	// InternalConsistencyBug — the atomic applier diverged from the replay
	// applier. Detected by the next pure verify.
	InternalConsistencyBug Kind = "internal_consistency_bug"
)

// RuntimeError is the single error type every package in this module
// returns for a classified failure.
type RuntimeError struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair and returns the receiver for chaining.
func (e *RuntimeError) WithDetail(key string, value any) *RuntimeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a RuntimeError with no wrapped cause.
func New(kind Kind, message string) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message}
}

// Wrap creates a RuntimeError wrapping an existing error.
func Wrap(kind Kind, message string, err error) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message, Err: err}
}

// Precondition-violated constructors

func UnknownOperation(id string) *RuntimeError {
	return New(PreconditionViolated, "unknown operation").WithDetail("id", id)
}

func CouplingRequired(id string) *RuntimeError {
	return New(PreconditionViolated, "operation requires an active coupling session").WithDetail("id", id)
}

func InsufficientEnergy(id string, required, available float64) *RuntimeError {
	return New(PreconditionViolated, "insufficient energy").
		WithDetail("id", id).
		WithDetail("required", required).
		WithDetail("available", available)
}

func BoundsViolation(reason string) *RuntimeError {
	return New(PreconditionViolated, "specialization bounds violated").WithDetail("reason", reason)
}

func SelfProductionCapReached(cap int) *RuntimeError {
	return New(PreconditionViolated, "self-production cap reached").WithDetail("cap", cap)
}

func AdmissionBlocked(reason string) *RuntimeError {
	return New(PreconditionViolated, "constitutional admission check blocked this action").WithDetail("reason", reason)
}

// Integrity-violation constructors

func InvariantViolated(id string, detail string) *RuntimeError {
	return New(IntegrityViolation, "invariant violated").WithDetail("invariant", id).WithDetail("detail", detail)
}

// Contention constructors

func LockTimeout(path string) *RuntimeError {
	return New(Contention, "lock acquisition timed out").WithDetail("path", path)
}

// Corruption constructors

func ChainCorrupt(detail string) *RuntimeError {
	return New(Corruption, "event chain is corrupt").WithDetail("detail", detail)
}

func MissingEventFile(seq uint64) *RuntimeError {
	return New(Corruption, "missing event file").WithDetail("seq", seq)
}

// Internal-consistency-bug constructors

func ApplierDivergence(eventType string) *RuntimeError {
	return New(InternalConsistencyBug, "atomic applier diverged from replay applier").WithDetail("event_type", eventType)
}

// As extracts a *RuntimeError from err's chain, if any.
func As(err error) (*RuntimeError, bool) {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ExitCode maps an error to the CLI exit code contract of spec.md §6.4:
// 0 success, 1 any verification failure or terminal status. Any other
// error also maps to 1 — there is no richer exit-code vocabulary specified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
