// Package metaops implements the three generator operations — define,
// compose, specialize — that form the generating set P of spec.md §4.8,
// and the seven-tag closed template enum each compiles to a pure handler
// from. Generated definitions never persist closures: a handler is built
// fresh from the stored template tag plus parameters on every executor
// call (spec.md §9 "dynamic handlers").
package metaops

import (
	"fmt"
	"time"

	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/statemodel"
)

const MaxDepth = 5

// BuildHandler compiles a GeneratedOperation's template tag + params into a
// pure catalog.Handler closure. The closure is built fresh each time this
// is called — never stored — so that the persisted record stays the
// single source of truth (spec.md §9).
func BuildHandler(op statemodel.GeneratedOperation) (catalog.Handler, error) {
	switch op.Template {
	case statemodel.TemplateReadField:
		return readFieldHandler(op.TemplateParams)
	case statemodel.TemplateSetField:
		return setFieldHandler(op.TemplateParams)
	case statemodel.TemplateCompose:
		return composeHandler(op.TemplateParams)
	case statemodel.TemplateConditional:
		return conditionalHandler(op.TemplateParams)
	case statemodel.TemplateTransform:
		return transformHandler(op.TemplateParams)
	case statemodel.TemplateAggregate:
		return aggregateHandler(op.TemplateParams)
	case statemodel.TemplateEcho:
		return echoHandler(op.TemplateParams)
	default:
		return nil, fmt.Errorf("metaops: unknown template tag %q", op.Template)
	}
}

// DefineRequest is the define operation's input.
type DefineRequest struct {
	ID               string
	Category         string
	Complexity       int
	EnergyCost       float64
	RequiresCoupling bool
	Template         statemodel.TemplateTag
	TemplateParams   map[string]any
	CurrentCycle     uint64
}

// Define validates id uniqueness against the catalog and the existing
// generated set, then produces a new QUARANTINED operation (spec.md §4.8).
func Define(c *catalog.Catalog, existing []statemodel.GeneratedOperation, req DefineRequest) (statemodel.GeneratedOperation, error) {
	if req.ID == "" {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: define requires a non-empty id")
	}
	if _, found := c.Lookup(req.ID); found {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: id %q collides with a built-in operation", req.ID)
	}
	for _, g := range existing {
		if g.ID == req.ID {
			return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: id %q already generated", req.ID)
		}
	}
	if _, err := BuildHandler(statemodel.GeneratedOperation{Template: req.Template, TemplateParams: req.TemplateParams}); err != nil {
		return statemodel.GeneratedOperation{}, err
	}

	return statemodel.GeneratedOperation{
		ID:                   req.ID,
		Category:             req.Category,
		Complexity:           req.Complexity,
		EnergyCost:           req.EnergyCost,
		RequiresCoupling:     req.RequiresCoupling,
		Template:             req.Template,
		TemplateParams:       req.TemplateParams,
		Depth:                0,
		Status:               statemodel.LifecycleQuarantined,
		StatusChangedAt:      time.Now().UTC(),
		QuarantineStartCycle: req.CurrentCycle,
	}, nil
}

// ComposeRequest is the compose operation's input.
type ComposeRequest struct {
	ID           string
	Category     string
	Components   []string
	CurrentCycle uint64
}

// Compose bundles an ordered list of existing operations; complexity and
// energy cost default to the sum of components, depth is one plus the
// maximum component depth (spec.md §4.8).
func Compose(c *catalog.Catalog, existing []statemodel.GeneratedOperation, req ComposeRequest) (statemodel.GeneratedOperation, error) {
	if len(req.Components) == 0 {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: compose requires at least one component")
	}
	var totalComplexity int
	var totalEnergy float64
	var maxDepth int
	requiresCoupling := false

	byID := indexGenerated(existing)
	for _, compID := range req.Components {
		if def, found := c.Lookup(compID); found {
			totalComplexity += def.Complexity
			totalEnergy += def.EnergyCost
			requiresCoupling = requiresCoupling || def.RequiresCoupling
			continue
		}
		gen, found := byID[compID]
		if !found {
			return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: compose references unknown operation %q", compID)
		}
		totalComplexity += gen.Complexity
		totalEnergy += gen.EnergyCost
		requiresCoupling = requiresCoupling || gen.RequiresCoupling
		if gen.Depth > maxDepth {
			maxDepth = gen.Depth
		}
	}

	depth := maxDepth + 1
	if depth > MaxDepth {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: composed depth %d exceeds MAX_DEPTH %d", depth, MaxDepth)
	}

	return statemodel.GeneratedOperation{
		ID:                   req.ID,
		Category:             req.Category,
		Complexity:           totalComplexity,
		EnergyCost:           totalEnergy,
		RequiresCoupling:     requiresCoupling,
		Template:             statemodel.TemplateCompose,
		TemplateParams:       map[string]any{"components": req.Components},
		Depth:                depth,
		ParentOperations:     req.Components,
		Status:               statemodel.LifecycleQuarantined,
		StatusChangedAt:      time.Now().UTC(),
		QuarantineStartCycle: req.CurrentCycle,
	}, nil
}

// SpecializeRequest is the specialize operation's input.
type SpecializeRequest struct {
	ID             string
	SourceID       string
	Complexity     int
	EnergyCost     float64
	RequiresCoupling bool
	TemplateParams map[string]any
	CurrentCycle   uint64
}

// sourceLike is the minimal shape specialize's bounds checks need, shared
// between a built-in catalog.Definition and a generated operation.
type sourceLike struct {
	Complexity       int
	EnergyCost       float64
	RequiresCoupling bool
	Depth            int
	Template         statemodel.TemplateTag
}

// Specialize enforces Sigillo 3's restriction-only bounds: a child must
// never exceed its parent's complexity or energy cost, may not weaken a
// coupling requirement, and must respect MAX_DEPTH (spec.md §4.8).
func Specialize(c *catalog.Catalog, existing []statemodel.GeneratedOperation, req SpecializeRequest) (statemodel.GeneratedOperation, error) {
	source, found := resolveSource(c, existing, req.SourceID)
	if !found {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: specialize references unknown source %q", req.SourceID)
	}

	if req.Complexity > source.Complexity {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: specialize bounds violation: complexity %d exceeds parent %d", req.Complexity, source.Complexity)
	}
	if req.EnergyCost > source.EnergyCost {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: specialize bounds violation: energy_cost %v exceeds parent %v", req.EnergyCost, source.EnergyCost)
	}
	if source.RequiresCoupling && !req.RequiresCoupling {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: specialize bounds violation: cannot weaken requires_coupling")
	}
	depth := source.Depth + 1
	if depth > MaxDepth {
		return statemodel.GeneratedOperation{}, fmt.Errorf("metaops: specialize bounds violation: depth %d exceeds MAX_DEPTH %d", depth, MaxDepth)
	}

	return statemodel.GeneratedOperation{
		ID:                   req.ID,
		Category:             "specialized",
		Complexity:           req.Complexity,
		EnergyCost:           req.EnergyCost,
		RequiresCoupling:     req.RequiresCoupling,
		Template:             source.Template,
		TemplateParams:       req.TemplateParams,
		Depth:                depth,
		ParentOperations:     []string{req.SourceID},
		Status:               statemodel.LifecycleQuarantined,
		StatusChangedAt:      time.Now().UTC(),
		QuarantineStartCycle: req.CurrentCycle,
	}, nil
}

func resolveSource(c *catalog.Catalog, existing []statemodel.GeneratedOperation, id string) (sourceLike, bool) {
	if def, found := c.Lookup(id); found {
		return sourceLike{Complexity: def.Complexity, EnergyCost: def.EnergyCost, RequiresCoupling: def.RequiresCoupling}, true
	}
	for _, g := range existing {
		if g.ID == id {
			return sourceLike{Complexity: g.Complexity, EnergyCost: g.EnergyCost, RequiresCoupling: g.RequiresCoupling, Depth: g.Depth, Template: g.Template}, true
		}
	}
	return sourceLike{}, false
}

func indexGenerated(ops []statemodel.GeneratedOperation) map[string]statemodel.GeneratedOperation {
	m := make(map[string]statemodel.GeneratedOperation, len(ops))
	for _, op := range ops {
		m[op.ID] = op
	}
	return m
}
