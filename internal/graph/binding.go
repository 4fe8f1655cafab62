package graph

import (
	"sync"

	"github.com/avstack-io/helmsman/internal/component"
	"github.com/avstack-io/helmsman/internal/mission"
)

// ActiveSet names which implementation a stage binding currently runs.
type ActiveSet string

const (
	ActivePrimary  ActiveSet = "primary"
	ActiveRecovery ActiveSet = "recovery"
)

// Binding ties a stage to its primary and recovery component instances and
// tracks which one is active. Bindings are created at graph-build time and
// swapped in place on fault; they are never duplicated.
//
// The active set is written by a single writer (the recovery manager) and
// read by the execution loop every cycle. Readers always observe either the
// fully-primary or fully-swapped state.
type Binding struct {
	stage    string
	category component.Category
	decl     mission.StageDecl

	mu       sync.RWMutex
	active   ActiveSet
	primary  component.Component
	recovery component.Component
}

// Stage returns the stage name.
func (b *Binding) Stage() string { return b.stage }

// Category returns the capability category the stage's components satisfy.
func (b *Binding) Category() component.Category { return b.category }

// Decl returns the stage's declaration from the computation graph.
func (b *Binding) Decl() mission.StageDecl { return b.decl }

// Active returns the component the loop should run this cycle and which
// set it belongs to. A degraded stage with no recovery component returns
// nil: the loop must skip execution and hold the stage's safe default.
func (b *Binding) Active() (component.Component, ActiveSet) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.active == ActiveRecovery {
		return b.recovery, ActiveRecovery
	}
	return b.primary, ActivePrimary
}

// HasRecovery reports whether a recovery component is declared.
func (b *Binding) HasRecovery() bool {
	return b.recovery != nil
}

// Degrade swaps the active implementation to the recovery component.
// Returns false when no recovery binding is declared, in which case the
// stage's output is held at its safe default by the loop instead.
func (b *Binding) Degrade() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = ActiveRecovery
	return b.recovery != nil
}

// Restore swaps the active implementation back to primary. Only the
// recovery manager calls this, and only when automatic recovery is enabled.
func (b *Binding) Restore() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = ActivePrimary
}

// components returns both instances for lifecycle management.
func (b *Binding) components() []component.Component {
	out := []component.Component{b.primary}
	if b.recovery != nil {
		out = append(out, b.recovery)
	}
	return out
}
