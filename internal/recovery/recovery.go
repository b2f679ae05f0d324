// Package recovery implements the ordered, invariant-specific repair
// sequence of spec.md §4.6. Recovery is itself event-logged and acquires
// the same write path as every other mutation, through statemanager.
package recovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/rerr"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
	"github.com/noesis-run/noesis/internal/verifier"
)

// Status is the terminal outcome of a recovery attempt.
type Status string

const (
	StatusRecovered Status = "recovered"
	StatusDegraded  Status = "degraded"
	StatusTerminal  Status = "terminal"
)

// Recover runs the exact INV-001 → INV-003 → INV-002 → INV-004 → INV-005
// ordered repair sequence against a verification result that reported at
// least one violation (spec.md §4.6). It stops at the first unrecoverable
// step.
func Recover(ctx context.Context, sm *statemanager.Manager, log *zap.Logger, result verifier.Result) (Status, error) {
	select {
	case <-ctx.Done():
		return StatusDegraded, ctx.Err()
	default:
	}

	if result.Satisfied() {
		log.Debug("recovery invoked with no violations; nothing to do")
		return StatusRecovered, nil
	}
	log.Warn("recovery engine invoked", zap.Int("violation_count", result.ViolationCount))

	if org, found := result.CheckByID(verifier.InvOrganizationImmutable); found && !org.Satisfied {
		log.Error("INV-001 organization immutability violated; marking terminal", zap.String("detail", org.Detail))
		if err := markTerminal(sm, "INV-001 organization fingerprint mismatch: "+org.Detail); err != nil {
			return StatusTerminal, err
		}
		return StatusTerminal, rerr.InvariantViolated(verifier.InvOrganizationImmutable, org.Detail)
	}

	if chain, found := result.CheckByID(verifier.InvChainIntegrity); found && !chain.Satisfied {
		log.Error("INV-003 chain integrity violated; operator intervention required", zap.String("detail", chain.Detail))
		return StatusTerminal, rerr.ChainCorrupt(chain.Detail)
	}

	if determinism, found := result.CheckByID(verifier.InvStateDeterminism); found && !determinism.Satisfied {
		log.Warn("INV-002 state determinism violated; rebuilding state from replay", zap.String("detail", determinism.Detail))
		if err := rebuildFromReplay(sm); err != nil {
			log.Error("failed to rebuild state from replay", zap.Error(err))
			return StatusDegraded, err
		}
	}

	if lyap, found := result.CheckByID(verifier.InvLyapunovMonotonic); found && !lyap.Satisfied {
		log.Warn("INV-004 Lyapunov monotonicity violated; recomputing V", zap.String("detail", lyap.Detail))
		if err := recomputeLyapunov(sm); err != nil {
			log.Error("failed to recompute V", zap.Error(err))
			return StatusDegraded, err
		}
	}

	if energy, found := result.CheckByID(verifier.InvEnergyViable); found && !energy.Satisfied {
		state := sm.ReadState()
		if state.Energy.Current <= 0 {
			log.Error("INV-005 energy exhausted; marking terminal")
			if err := markTerminal(sm, "energy exhausted"); err != nil {
				return StatusTerminal, err
			}
			return StatusTerminal, rerr.InvariantViolated(verifier.InvEnergyViable, "energy exhausted")
		}
		log.Warn("INV-005 energy below minimum; marking dormant")
		if err := markStatus(sm, statemodel.StatusDormant, "energy below minimum"); err != nil {
			return StatusDegraded, err
		}
		return StatusDegraded, nil
	}

	log.Info("recovery completed")
	return StatusRecovered, nil
}

func markTerminal(sm *statemanager.Manager, reason string) error {
	return markStatus(sm, statemodel.StatusTerminal, reason)
}

func markStatus(sm *statemanager.Manager, status statemodel.IntegrityStatus, reason string) error {
	_, _, err := sm.AppendEventAtomic(eventlog.TypeVerification, map[string]any{
		"status":          string(status),
		"detail":          reason,
		"recovered_at":    time.Now().UTC().Format(time.RFC3339Nano),
		"violation_count": 1,
	})
	return err
}

func rebuildFromReplay(sm *statemanager.Manager) error {
	events, err := sm.Events()
	if err != nil {
		return fmt.Errorf("recovery: load events: %w", err)
	}
	if _, err := statemodel.Replay(events); err != nil {
		return fmt.Errorf("recovery: replay: %w", err)
	}
	// Replaying successfully confirms a fresh state is derivable; the
	// atomic append below forces statemanager's cache back in sync with
	// it under lock rather than poking the cache directly.
	return markStatus(sm, statemodel.StatusDegraded, "state rebuilt from replay")
}

func recomputeLyapunov(sm *statemanager.Manager) error {
	state := sm.ReadState()
	_, _, err := sm.AppendEventAtomic(eventlog.TypeStateUpdate, map[string]any{
		"v": state.Lyapunov.VPrevious,
	})
	return err
}
