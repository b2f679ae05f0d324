// Package agent implements the sense-making control loop of spec.md §4.10:
// FEEL, COUPLING DEFERENCE, RESPOND, REMEMBER, ADAPT, run once per cycle
// against a shared statemanager.Manager.
package agent

import "github.com/noesis-run/noesis/internal/statemodel"

// CycleContext is the derived (never declared) operating context Sigillo
// 2 is built on (spec.md §4.11).
type CycleContext string

const (
	ContextTest       CycleContext = "test"
	ContextAudit      CycleContext = "audit"
	ContextProduction CycleContext = "production"
)

// ManualOverride lets an operator pin a non-test context; it has no
// effect when IsTestContext reports true — that channel cannot be
// overridden (spec.md §4.11).
type ManualOverride struct {
	Set     bool
	Context CycleContext
}

// DeriveContext implements spec.md §4.11's precedence: test (unconditional)
// > manual override > audit (coupling active) > production.
func DeriveContext(isTestContext bool, override ManualOverride, coupling statemodel.Coupling) CycleContext {
	if isTestContext {
		return ContextTest
	}
	if override.Set {
		return override.Context
	}
	if coupling.Active {
		return ContextAudit
	}
	return ContextProduction
}

// SideEffectsEnabled reports whether the context permits usage tracking,
// self-production, parameter adaptation, and quarantine transitions
// (spec.md §4.11: test/audit runs the loop normally but without these).
func (c CycleContext) SideEffectsEnabled() bool {
	return c == ContextProduction
}
