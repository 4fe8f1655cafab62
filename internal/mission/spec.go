// Package mission resolves declarative mission documents into an immutable,
// fully-typed specification. Resolution layers named variant overlays onto a
// base document, expands !include and !relative_path references, and
// validates the result before anything is constructed.
package mission

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Mode selects the vehicle I/O backing for a mission.
type Mode string

const (
	ModeHardware   Mode = "hardware"
	ModeSimulation Mode = "simulation"
)

// Stage category names used by drive and recovery sub-groups.
const (
	CategoryPerception = "perception"
	CategoryPlanning   = "planning"
)

// StageTrajectoryTracking is the control stage whose output is dispatched
// to the vehicle interface. Interface failures are recoverable only when a
// recovery binding exists for it.
const StageTrajectoryTracking = "trajectory_tracking"

// ComponentRef names a component implementation plus its constructor
// arguments. In YAML it is either a bare identifier string or a mapping
// with type and args keys. A nil *ComponentRef disables the stage.
type ComponentRef struct {
	Type string         `mapstructure:"type" yaml:"type"`
	Args map[string]any `mapstructure:"args" yaml:"args,omitempty"`
}

// Spec is the fully-resolved, immutable mission specification. It is built
// once by the Resolver and shared read-only across the control loop and any
// background logging or replay tasks.
type Spec struct {
	// Name is an optional human-readable mission name.
	Name string `mapstructure:"name"`

	Mode Mode `mapstructure:"mode" validate:"required,oneof=hardware simulation"`

	VehicleInterface *ComponentRef `mapstructure:"vehicle_interface" validate:"required"`

	// MissionExecution selects the executor type. Only "standard" is built
	// in; anything else is rejected at resolution.
	MissionExecution string `mapstructure:"mission_execution" validate:"omitempty,oneof=standard"`

	// RequireEngaged gates DISPATCH. When false, perception and planning
	// stages run but no command reaches the vehicle interface (shadow mode).
	// Absent means true.
	RequireEngaged *bool `mapstructure:"require_engaged"`

	Drive    DriveSpec    `mapstructure:"drive"`
	Recovery RecoverySpec `mapstructure:"recovery"`

	Log    LogSpec    `mapstructure:"log"`
	Replay ReplaySpec `mapstructure:"replay"`

	ComputationGraph GraphSpec `mapstructure:"computation_graph"`

	// After holds post-run options, passed through untyped.
	After map[string]any `mapstructure:"after"`
}

// DriveSpec holds the primary per-stage bindings, partitioned into
// perception and planning sub-groups. A nil ref disables the stage.
type DriveSpec struct {
	Perception map[string]*ComponentRef `mapstructure:"perception"`
	Planning   map[string]*ComponentRef `mapstructure:"planning"`
}

// RecoverySpec holds the per-stage fallback bindings plus recovery policy.
type RecoverySpec struct {
	Perception map[string]*ComponentRef `mapstructure:"perception"`
	Planning   map[string]*ComponentRef `mapstructure:"planning"`

	// AutoRecover permits a degraded stage to return to its primary binding
	// on an explicit recovered signal. Default false: once degraded, a stage
	// stays degraded until mission restart.
	AutoRecover bool `mapstructure:"auto_recover"`

	// MaxFailures is the number of consecutive failures before a stage is
	// degraded. Zero means degrade on the first failure.
	MaxFailures int `mapstructure:"max_failures" validate:"gte=0"`
}

// LogSpec selects what the recording session captures.
type LogSpec struct {
	// Folder is the session root. Empty disables recording.
	Folder string `mapstructure:"folder"`

	// Prefix overrides the timestamp-based session directory name.
	Prefix string `mapstructure:"prefix"`

	Topics     []string `mapstructure:"topics"`
	Components []string `mapstructure:"components"`

	// StateRate is the periodic full-state snapshot rate in Hz. Zero
	// disables snapshots.
	StateRate float64 `mapstructure:"state_rate" validate:"gte=0"`

	// VehicleInterface records every dispatched command when true.
	VehicleInterface bool `mapstructure:"vehicle_interface"`
}

// ReplaySpec selects which recorded streams substitute live execution.
type ReplaySpec struct {
	// Folder is a prior session directory. Empty disables replay.
	Folder string `mapstructure:"folder"`

	Components []string `mapstructure:"components"`
	Topics     []string `mapstructure:"topics"`
}

// GraphSpec declares the stage set and inter-stage ordering.
type GraphSpec struct {
	// CadenceHz is the fixed control cadence. Zero runs as fast as the
	// vehicle interface accepts commands.
	CadenceHz float64 `mapstructure:"cadence_hz" validate:"gte=0"`

	Stages []StageDecl `mapstructure:"stages"`
}

// StageDecl declares one stage: its upstream dependencies, the blackboard
// names it consumes and produces, and an optional per-stage rate.
type StageDecl struct {
	Name      string   `mapstructure:"name" validate:"required"`
	DependsOn []string `mapstructure:"depends_on"`
	Inputs    []string `mapstructure:"inputs"`
	Outputs   []string `mapstructure:"outputs"`

	// RateHz throttles the stage below the loop cadence. Zero runs every
	// cycle.
	RateHz float64 `mapstructure:"rate_hz" validate:"gte=0"`
}

// OutputNames returns the declared outputs, defaulting to the stage name.
func (d StageDecl) OutputNames() []string {
	if len(d.Outputs) == 0 {
		return []string{d.Name}
	}
	return d.Outputs
}

// Engaged reports the effective require_engaged flag (absent means true).
func (s *Spec) Engaged() bool {
	return s.RequireEngaged == nil || *s.RequireEngaged
}

// DriveBinding returns the primary binding for a stage and whether the
// stage appears in the drive section at all. A nil ref with ok=true means
// the stage is explicitly disabled.
func (s *Spec) DriveBinding(stage string) (ref *ComponentRef, category string, ok bool) {
	if ref, ok := s.Drive.Perception[stage]; ok {
		return ref, CategoryPerception, true
	}
	if ref, ok := s.Drive.Planning[stage]; ok {
		return ref, CategoryPlanning, true
	}
	return nil, "", false
}

// RecoveryBinding returns the declared fallback binding for a stage, or nil.
func (s *Spec) RecoveryBinding(stage string) *ComponentRef {
	if ref, ok := s.Recovery.Perception[stage]; ok {
		return ref
	}
	if ref, ok := s.Recovery.Planning[stage]; ok {
		return ref
	}
	return nil
}

// componentRefHook decodes a bare identifier string into a ComponentRef,
// so bindings can be written either as "pure_pursuit" or as
// {type: pure_pursuit, args: {...}}.
func componentRefHook() mapstructure.DecodeHookFuncType {
	refType := reflect.TypeOf(ComponentRef{})
	return func(from, to reflect.Type, data any) (any, error) {
		if to != refType || from.Kind() != reflect.String {
			return data, nil
		}
		return ComponentRef{Type: data.(string)}, nil
	}
}
