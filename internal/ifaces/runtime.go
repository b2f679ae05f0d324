// Package ifaces defines the Runtime boundary external collaborators
// (CLI, gateway, socket) call through — a thin library-API surface over
// the core, matching the one-to-one command mapping of spec.md §6.4.
package ifaces

import (
	"context"

	"go.uber.org/zap"

	"github.com/noesis-run/noesis/internal/agent"
	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/coupling"
	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/hostvitals"
	"github.com/noesis-run/noesis/internal/metaops"
	"github.com/noesis-run/noesis/internal/query"
	"github.com/noesis-run/noesis/internal/recovery"
	"github.com/noesis-run/noesis/internal/snapshot"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
	"github.com/noesis-run/noesis/internal/verifier"
)

// Runtime exposes every spec.md §6.4 command as a Go method, so the
// gateway and socket adapters can map one route/message type to one
// call without reaching into internal packages directly.
type Runtime struct {
	SM          *statemanager.Manager
	Catalog     *catalog.Catalog
	Agent       *agent.Agent
	HashOrg     verifier.OrganizationHasher
	RecoveryLog *zap.Logger
	BaseDir     string
}

func New(sm *statemanager.Manager, cat *catalog.Catalog, ag *agent.Agent, hashOrg verifier.OrganizationHasher, recoveryLog *zap.Logger, baseDir string) *Runtime {
	return &Runtime{SM: sm, Catalog: cat, Agent: ag, HashOrg: hashOrg, RecoveryLog: recoveryLog, BaseDir: baseDir}
}

func (r *Runtime) Verify() (verifier.Result, error) {
	state := r.SM.ReadState()
	events, err := r.SM.Events()
	if err != nil {
		return verifier.Result{}, err
	}
	return verifier.Pure(state, events, r.HashOrg), nil
}

// VerifyLogged is the logged-verify form `verify` maps to; distinct from
// `verify_readonly`, which must use Verify above (Sigillo 2).
func (r *Runtime) VerifyLogged(ctx context.Context) (verifier.Result, error) {
	return verifier.Logged(ctx, r.SM, r.HashOrg)
}

func (r *Runtime) Status() statemodel.State {
	return r.SM.ReadState()
}

// HostVitals samples the host's current CPU/memory/load, a signal
// surfaced alongside status but never folded into organization state —
// it is not a function of event history and must stay outside anything
// INV-002 governs.
func (r *Runtime) HostVitals() hostvitals.Snapshot {
	return hostvitals.Sample()
}

func (r *Runtime) SessionStart(partner string) (statemodel.State, error) {
	return coupling.Start(r.SM, partner)
}

func (r *Runtime) SessionEnd() (statemodel.State, error) {
	return coupling.End(r.SM)
}

func (r *Runtime) Recharge(amount float64) (catalog.Result, error) {
	return r.Catalog.Exec(r.SM, "energy.recharge", map[string]any{"amount": amount})
}

func (r *Runtime) OpExec(id string, params map[string]any) (catalog.Result, error) {
	return r.Catalog.Exec(r.SM, id, params)
}

func (r *Runtime) AgentForceCycle() (agent.CycleOutcome, error) {
	return r.Agent.RunCycle()
}

func (r *Runtime) AgentWake() error {
	return agent.Wake(r.SM)
}

func (r *Runtime) AgentSleep() error {
	return agent.Sleep(r.SM)
}

func (r *Runtime) MetaDefine(req metaops.DefineRequest) (statemodel.GeneratedOperation, error) {
	state := r.SM.ReadState()
	op, err := metaops.Define(r.Catalog, state.Autopoiesis.Generated, req)
	if err != nil {
		return statemodel.GeneratedOperation{}, err
	}
	return op, r.persistAndRegister(state.Autopoiesis.Generated, op)
}

func (r *Runtime) MetaCompose(req metaops.ComposeRequest) (statemodel.GeneratedOperation, error) {
	state := r.SM.ReadState()
	op, err := metaops.Compose(r.Catalog, state.Autopoiesis.Generated, req)
	if err != nil {
		return statemodel.GeneratedOperation{}, err
	}
	return op, r.persistAndRegister(state.Autopoiesis.Generated, op)
}

func (r *Runtime) MetaSpecialize(req metaops.SpecializeRequest) (statemodel.GeneratedOperation, error) {
	state := r.SM.ReadState()
	op, err := metaops.Specialize(r.Catalog, state.Autopoiesis.Generated, req)
	if err != nil {
		return statemodel.GeneratedOperation{}, err
	}
	return op, r.persistAndRegister(state.Autopoiesis.Generated, op)
}

// persistAndRegister appends the generator's output to the durable
// Autopoiesis.Generated set via META_OPERATION and compiles its handler
// into the catalog immediately — without this, a defined/composed/
// specialized operation would never appear in state at all, and could
// never reach TRIAL or ACTIVE (spec.md §4.8).
func (r *Runtime) persistAndRegister(existing []statemodel.GeneratedOperation, op statemodel.GeneratedOperation) error {
	generated := append(append([]statemodel.GeneratedOperation(nil), existing...), op)
	if _, _, err := r.SM.AppendEventAtomic(eventlog.TypeMetaOperation, map[string]any{
		"generated": generated,
	}); err != nil {
		return err
	}
	// Specializing a built-in source carries no template of its own, so it
	// can't be compiled into a live handler here — it stays persisted but
	// unregistered, and cmd/noesisd's startup rehydration skips it for the
	// same reason.
	if handler, err := metaops.BuildHandler(op); err == nil {
		if _, found := r.Catalog.Lookup(op.ID); !found {
			r.Catalog.Register(catalog.Definition{
				ID:               op.ID,
				Category:         op.Category,
				Complexity:       op.Complexity,
				EnergyCost:       op.EnergyCost,
				RequiresCoupling: op.RequiresCoupling,
				Handler:          handler,
			})
		}
	}
	return nil
}

func (r *Runtime) Recover(ctx context.Context, result verifier.Result) (recovery.Status, error) {
	return recovery.Recover(ctx, r.SM, r.RecoveryLog, result)
}

// Query runs a jsonpath expression over the current state snapshot.
func (r *Runtime) Query(expr string) (any, error) {
	return query.Eval(r.SM.ReadState(), expr)
}

func (r *Runtime) SnapshotCreate(description string) (snapshot.Manifest, error) {
	return snapshot.Create(r.SM, r.BaseDir, description)
}

func (r *Runtime) SnapshotList() ([]snapshot.Manifest, error) {
	return snapshot.List(r.BaseDir)
}

func (r *Runtime) SnapshotRestore(id string) ([]eventlog.Event, error) {
	return snapshot.Restore(r.BaseDir, id)
}
