// Package component defines the capability contracts for pipeline stages
// and the registry that maps symbolic identifiers to component factories.
package component

import (
	"context"

	"github.com/avstack-io/helmsman/internal/state"
)

// Category partitions stages by the capability interface their component
// must satisfy.
type Category string

const (
	// CategoryPerception components consume the vehicle and sensor
	// snapshots and produce an estimate.
	CategoryPerception Category = "perception"

	// CategoryPlanning components consume prior stage outputs from the
	// cycle blackboard and produce a downstream artifact.
	CategoryPlanning Category = "planning"

	// CategoryControl components consume a trajectory and produce the
	// vehicle command dispatched at the end of the cycle.
	CategoryControl Category = "control"
)

// Component is the lifecycle contract shared by all stage implementations.
// Initialize is called once before the first cycle, Cleanup once after the
// loop terminates.
type Component interface {
	Initialize(ctx context.Context) error
	Cleanup() error
}

// Perception components turn the current vehicle and sensor snapshots into
// an estimate. A nil result with a nil error means no new output this
// cycle; the previous value is carried forward.
type Perception interface {
	Component
	Update(ctx context.Context, vehicle *state.Vehicle, sensors *state.SensorFrame) (any, error)
}

// Planning components read prior stage outputs from the cycle blackboard
// and produce a planning artifact.
type Planning interface {
	Component
	Update(ctx context.Context, cycle *state.Cycle) (any, error)
}

// Control components produce the command dispatched to the vehicle
// interface. A nil command with a nil error holds the previous output.
type Control interface {
	Component
	Update(ctx context.Context, cycle *state.Cycle) (*state.Command, error)
}

// Base provides no-op lifecycle methods for embedding in components that
// need no setup or teardown.
type Base struct{}

func (Base) Initialize(ctx context.Context) error { return nil }
func (Base) Cleanup() error                       { return nil }

// Implements reports whether c satisfies the capability interface required
// by the given category.
func Implements(c Component, category Category) bool {
	switch category {
	case CategoryPerception:
		_, ok := c.(Perception)
		return ok
	case CategoryPlanning:
		_, ok := c.(Planning)
		return ok
	case CategoryControl:
		_, ok := c.(Control)
		return ok
	}
	return false
}
