// Package recovery supervises per-stage health. On a stage failure it
// atomically swaps the stage's active binding to the declared recovery
// component, without restarting unaffected stages.
package recovery

import (
	"log/slog"
	"sync"

	"github.com/avstack-io/helmsman/internal/graph"
	"github.com/avstack-io/helmsman/internal/mission"
)

// Status is the supervision state of one stage.
type Status string

const (
	// StatusNormal means the primary binding is active.
	StatusNormal Status = "normal"

	// StatusDegraded means the recovery binding (or the safe-default hold,
	// when none is declared) is active.
	StatusDegraded Status = "degraded"
)

// EventSink receives human-readable supervision events for the session
// log. The recording session satisfies this.
type EventSink interface {
	Event(t float64, description string)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithEventSink routes supervision events to the given sink.
func WithEventSink(sink EventSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// Manager tracks each stage's NORMAL/DEGRADED state machine and performs
// binding swaps. It is the single writer of the active-binding set; the
// execution loop only reads.
type Manager struct {
	graph  *graph.Graph
	logger *slog.Logger
	sink   EventSink

	autoRecover bool
	maxFailures int

	mu     sync.Mutex
	stages map[string]*stageState
}

type stageState struct {
	status      Status
	consecutive int
}

// NewManager creates a Manager over the graph with the mission's recovery
// policy. maxFailures below one degrades on the first failure.
func NewManager(g *graph.Graph, policy mission.RecoverySpec, opts ...Option) *Manager {
	m := &Manager{
		graph:       g,
		logger:      slog.Default(),
		autoRecover: policy.AutoRecover,
		maxFailures: policy.MaxFailures,
		stages:      make(map[string]*stageState),
	}
	if m.maxFailures < 1 {
		m.maxFailures = 1
	}
	for _, stage := range g.Order() {
		m.stages[stage] = &stageState{status: StatusNormal}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnStageFailure records a failure of the stage's active component at
// vehicle time t. Once the consecutive-failure threshold is reached the
// stage is degraded: its binding is swapped to the recovery component
// before the next cycle reaches it, or, absent a recovery binding, its
// output is held at the safe default indefinitely (fail-safe, not
// fail-silent).
func (m *Manager) OnStageFailure(stage string, t float64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stages[stage]
	if !ok {
		m.logger.Warn("failure reported for unknown stage", "stage", stage, "error", cause)
		return
	}
	s.consecutive++

	if s.status == StatusDegraded {
		m.logger.Warn("degraded stage failed again",
			"stage", stage, "consecutive", s.consecutive, "error", cause)
		return
	}
	if s.consecutive < m.maxFailures {
		m.logger.Warn("stage failure below degrade threshold",
			"stage", stage, "consecutive", s.consecutive,
			"threshold", m.maxFailures, "error", cause)
		return
	}

	s.status = StatusDegraded
	binding := m.graph.Binding(stage)
	hasRecovery := false
	if binding != nil {
		hasRecovery = binding.Degrade()
	}

	if hasRecovery {
		m.logger.Error("stage degraded, recovery binding active",
			"stage", stage, "error", cause)
		m.emit(t, "stage "+stage+" degraded: recovery component active")
	} else {
		m.logger.Error("stage degraded with no recovery binding, holding safe default",
			"stage", stage, "error", cause)
		m.emit(t, "stage "+stage+" degraded: no recovery binding, holding safe default")
	}
}

// OnStageRecovered returns a degraded stage to its primary binding. The
// signal is honored only when the mission enables automatic recovery;
// otherwise a degraded stage stays degraded until mission restart, since
// un-degrading without operator confirmation is unsafe for a vehicle
// control system.
func (m *Manager) OnStageRecovered(stage string, t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stages[stage]
	if !ok || s.status != StatusDegraded {
		return
	}
	if !m.autoRecover {
		m.logger.Info("recovery signal ignored, auto_recover disabled", "stage", stage)
		return
	}

	s.status = StatusNormal
	s.consecutive = 0
	if binding := m.graph.Binding(stage); binding != nil {
		binding.Restore()
	}
	m.logger.Info("stage restored to primary binding", "stage", stage)
	m.emit(t, "stage "+stage+" restored to primary binding")
}

// OnCycleSuccess resets the consecutive-failure count for a stage that
// completed normally while still below the degrade threshold.
func (m *Manager) OnCycleSuccess(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stages[stage]; ok && s.status == StatusNormal {
		s.consecutive = 0
	}
}

// OnInterfaceFailure handles a vehicle I/O failure at vehicle time t. The
// fault is recoverable only when the trajectory_tracking stage declares a
// recovery binding; in that case the stage is degraded and true is
// returned. False means the loop must treat the fault as fatal.
func (m *Manager) OnInterfaceFailure(t float64, cause error) bool {
	binding := m.graph.Binding(mission.StageTrajectoryTracking)
	if binding == nil || !binding.HasRecovery() {
		m.logger.Error("vehicle interface failure with no tracking recovery binding",
			"error", cause)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stages[mission.StageTrajectoryTracking]
	if s.status != StatusDegraded {
		s.status = StatusDegraded
		binding.Degrade()
		m.logger.Error("vehicle interface failure, tracking degraded", "error", cause)
		m.emit(t, "vehicle interface failure: trajectory_tracking degraded")
	}
	return true
}

// Status returns the supervision state of a stage.
func (m *Manager) Status(stage string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stages[stage]; ok {
		return s.status
	}
	return StatusNormal
}

// Degraded returns all currently degraded stages in graph order.
func (m *Manager) Degraded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, stage := range m.graph.Order() {
		if s, ok := m.stages[stage]; ok && s.status == StatusDegraded {
			out = append(out, stage)
		}
	}
	return out
}

func (m *Manager) emit(t float64, description string) {
	if m.sink != nil {
		m.sink.Event(t, description)
	}
}
