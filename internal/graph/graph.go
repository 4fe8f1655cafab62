// Package graph derives the ordered stage pipeline from a resolved mission
// specification: which stages run, in what order, and which component
// instances are bound to each stage slot.
package graph

import (
	"context"
	"fmt"

	"github.com/avstack-io/helmsman/internal/component"
	"github.com/avstack-io/helmsman/internal/mission"
)

// Graph is the immutable computation graph for one mission run: a fixed
// topological stage order plus the swappable binding for each stage. The
// order is deterministic for a fixed specification, with ties broken by
// declaration order.
type Graph struct {
	order    []string
	bindings map[string]*Binding
}

// Build determines the stage set (declared stages intersected with non-null
// drive bindings), topologically sorts it, and constructs the primary and
// declared recovery component for every stage via the registry. Unknown
// identifiers and capability mismatches fail here, before the control loop
// starts.
func Build(spec *mission.Spec, registry *component.Registry) (*Graph, error) {
	decls := spec.ComputationGraph.Stages

	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.Name] = true
	}

	// Stage set: declared and bound non-null in drive.
	type slot struct {
		decl     mission.StageDecl
		ref      *mission.ComponentRef
		category component.Category
	}
	slots := make(map[string]slot)
	var active []mission.StageDecl
	for _, d := range decls {
		ref, group, ok := spec.DriveBinding(d.Name)
		if !ok || ref == nil {
			continue // stage disabled or unbound
		}
		slots[d.Name] = slot{decl: d, ref: ref, category: stageCategory(d.Name, group)}
		active = append(active, d)
	}
	if len(active) == 0 {
		return nil, &Error{Code: ErrCodeEmptyGraph, Message: "no stage is both declared and bound"}
	}

	// Dependencies must reference declared stages. Edges into disabled
	// stages are dropped; edges into undeclared stages are errors.
	indegree := make(map[string]int, len(active))
	dependents := make(map[string][]string)
	for _, d := range active {
		indegree[d.Name] = 0
	}
	for _, d := range active {
		for _, dep := range d.DependsOn {
			if !declared[dep] {
				return nil, NewUnknownStageError(d.Name, dep)
			}
			if _, enabled := slots[dep]; !enabled {
				continue
			}
			indegree[d.Name]++
			dependents[dep] = append(dependents[dep], d.Name)
		}
	}

	// Kahn's algorithm, always taking the earliest-declared ready stage so
	// the order is stable across runs.
	order := make([]string, 0, len(active))
	done := make(map[string]bool, len(active))
	for len(order) < len(active) {
		picked := ""
		for _, d := range active {
			if !done[d.Name] && indegree[d.Name] == 0 {
				picked = d.Name
				break
			}
		}
		if picked == "" {
			var remaining []string
			for _, d := range active {
				if !done[d.Name] {
					remaining = append(remaining, d.Name)
				}
			}
			return nil, NewCyclicDependencyError(remaining)
		}
		done[picked] = true
		order = append(order, picked)
		for _, next := range dependents[picked] {
			indegree[next]--
		}
	}

	// Bind components in topological order.
	g := &Graph{order: order, bindings: make(map[string]*Binding, len(order))}
	for _, name := range order {
		s := slots[name]
		binding, err := bind(name, s.decl, s.category, s.ref, spec.RecoveryBinding(name), registry)
		if err != nil {
			return nil, err
		}
		g.bindings[name] = binding
	}
	return g, nil
}

// stageCategory maps a drive sub-group to a capability category. The
// trajectory_tracking stage is the control stage regardless of grouping.
func stageCategory(stage, group string) component.Category {
	if stage == mission.StageTrajectoryTracking {
		return component.CategoryControl
	}
	if group == mission.CategoryPerception {
		return component.CategoryPerception
	}
	return component.CategoryPlanning
}

// bind constructs the primary and, when declared, recovery component for a
// stage and checks both against the stage's capability category.
func bind(stage string, decl mission.StageDecl, category component.Category, primary, recovery *mission.ComponentRef, registry *component.Registry) (*Binding, error) {
	primaryImpl, err := construct(stage, category, primary, registry)
	if err != nil {
		return nil, err
	}

	var recoveryImpl component.Component
	if recovery != nil {
		recoveryImpl, err = construct(stage, category, recovery, registry)
		if err != nil {
			return nil, err
		}
	}

	return &Binding{
		stage:    stage,
		category: category,
		decl:     decl,
		active:   ActivePrimary,
		primary:  primaryImpl,
		recovery: recoveryImpl,
	}, nil
}

func construct(stage string, category component.Category, ref *mission.ComponentRef, registry *component.Registry) (component.Component, error) {
	impl, err := registry.Construct(ref.Type, ref.Args)
	if err != nil {
		return nil, NewBindError(stage, err)
	}
	if !component.Implements(impl, category) {
		return nil, NewBindError(stage,
			fmt.Errorf("component %q does not implement the %s capability", ref.Type, category))
	}
	return impl, nil
}

// Order returns the topological stage order. The returned slice is a copy.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Binding returns the binding for a stage, or nil if the stage is not in
// the graph.
func (g *Graph) Binding(stage string) *Binding {
	return g.bindings[stage]
}

// Bindings returns all bindings in topological order.
func (g *Graph) Bindings() []*Binding {
	out := make([]*Binding, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.bindings[name])
	}
	return out
}

// Initialize runs component initialization for every bound instance,
// primary and recovery, in topological order.
func (g *Graph) Initialize(ctx context.Context) error {
	for _, name := range g.order {
		for _, c := range g.bindings[name].components() {
			if err := c.Initialize(ctx); err != nil {
				return NewBindError(name, fmt.Errorf("initialization failed: %w", err))
			}
		}
	}
	return nil
}

// Cleanup tears down every bound component. Errors are collected but do
// not stop the remaining cleanups.
func (g *Graph) Cleanup() error {
	var firstErr error
	for _, name := range g.order {
		for _, c := range g.bindings[name].components() {
			if err := c.Cleanup(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("cleanup of stage %q failed: %w", name, err)
			}
		}
	}
	return firstErr
}
