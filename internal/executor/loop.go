// Package executor drives the computation graph on a control cadence:
// acquire the vehicle snapshot, run each stage in topological order,
// dispatch the tracking output to the vehicle interface, and idle until
// the next tick. Stage failures are routed to the recovery manager and
// never abort a cycle.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstack-io/helmsman/internal/component"
	"github.com/avstack-io/helmsman/internal/graph"
	"github.com/avstack-io/helmsman/internal/mission"
	"github.com/avstack-io/helmsman/internal/observability"
	"github.com/avstack-io/helmsman/internal/recorder"
	"github.com/avstack-io/helmsman/internal/recovery"
	"github.com/avstack-io/helmsman/internal/state"
	"github.com/avstack-io/helmsman/internal/vehicle"
)

// defaultCadenceHz drives the loop when neither the mission nor the
// vehicle interface constrains the rate.
const defaultCadenceHz = 10.0

// stoppedSpeedEps is the speed below which a degraded-tracking vehicle is
// considered stopped, ending the mission.
const stoppedSpeedEps = 1e-3

// errStopRequested marks a stop signal observed while a blocking vehicle
// I/O call was in flight. Run converts it into a clean exit; it is never
// an interface fault.
var errStopRequested = errors.New("stop requested")

// Loop is the mission execution loop. Construct with New, run once with
// Run. The spec and graph are immutable; the only mutable shared state is
// the active binding set, written by the recovery manager.
type Loop struct {
	spec    *mission.Spec
	graph   *graph.Graph
	vehicle vehicle.Interface

	recovery *recovery.Manager
	session  *recorder.Session
	replay   *recorder.Replay
	topics   TopicSource

	logger    *slog.Logger
	tracer    trace.Tracer
	ioTimeout time.Duration

	seq         uint64
	lastVehicle *state.Vehicle
	lastGood    map[string]any
	lastGoodT   map[string]float64
	nextDue     map[string]float64
	lastFaults  map[string]bool

	trackingKey string
	finished    bool
	exitReason  string
}

// New creates an execution loop over a built graph and vehicle interface.
func New(spec *mission.Spec, g *graph.Graph, iface vehicle.Interface, opts ...Option) *Loop {
	l := &Loop{
		spec:       spec,
		graph:      g,
		vehicle:    iface,
		logger:     slog.Default(),
		ioTimeout:  500 * time.Millisecond,
		lastGood:   make(map[string]any),
		lastGoodT:  make(map[string]float64),
		nextDue:    make(map[string]float64),
		lastFaults: make(map[string]bool),
	}
	if b := g.Binding(mission.StageTrajectoryTracking); b != nil {
		l.trackingKey = b.Decl().OutputNames()[0]
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the mission until a termination signal or a fatal error.
// Cancellation of ctx completes the current cycle, flushes the recording
// session, and returns nil; no cycle is abandoned mid-dispatch. Stage
// errors never propagate here; only loop-fatal conditions do.
func (l *Loop) Run(ctx context.Context) (err error) {
	if l.session != nil {
		defer func() {
			reason := l.exitReason
			if err != nil {
				reason = err.Error()
			} else if reason == "" {
				reason = "normal exit"
			}
			l.session.SetExitReason(reason)
			if cerr := l.session.Close(); cerr != nil {
				l.logger.Warn("failed to close recording session", "error", cerr)
			}
		}()
	}

	if err := l.graph.Initialize(ctx); err != nil {
		return fmt.Errorf("component initialization failed: %w", err)
	}
	defer func() {
		if cerr := l.graph.Cleanup(); cerr != nil {
			l.logger.Warn("component cleanup failed", "error", cerr)
		}
	}()

	interval := l.cadenceInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.InfoContext(ctx, "mission execution started",
		"mission", l.spec.Name,
		"mode", string(l.spec.Mode),
		"stages", l.graph.Order(),
		"cadence", interval,
	)
	l.event(l.vehicle.Time(), "mission execution started")

	for {
		if err := l.runCycle(ctx); err != nil {
			if errors.Is(err, errStopRequested) {
				l.exitReason = "stop requested"
				l.logger.InfoContext(ctx, "stop signal received during vehicle I/O, terminating")
				l.event(l.vehicle.Time(), "stop requested")
				return nil
			}
			l.logger.ErrorContext(ctx, "mission execution failed", "error", err)
			l.event(l.vehicle.Time(), "mission execution failed: "+err.Error())
			return err
		}
		if l.finished {
			l.logger.InfoContext(ctx, "mission complete", "reason", l.exitReason)
			l.event(l.vehicle.Time(), "mission complete: "+l.exitReason)
			return nil
		}

		select {
		case <-ctx.Done():
			l.exitReason = "stop requested"
			l.logger.InfoContext(ctx, "stop signal received, terminating after completed cycle")
			l.event(l.vehicle.Time(), "stop requested")
			return nil
		case <-ticker.C:
		}
	}
}

// cadenceInterval picks the cycle period: the configured cadence when
// given, otherwise free-running bounded by the vehicle interface's
// accepted command rate. Control output is never produced more often than
// the interface accepts.
func (l *Loop) cadenceInterval() time.Duration {
	hz := l.spec.ComputationGraph.CadenceHz
	if maxHz := l.vehicle.CommandRateHz(); maxHz > 0 && (hz <= 0 || hz > maxHz) {
		hz = maxHz
	}
	if hz <= 0 {
		hz = defaultCadenceHz
	}
	return time.Duration(float64(time.Second) / hz)
}

// runCycle performs one ACQUIRE → EXECUTE-STAGES → DISPATCH pass. The
// returned error is loop-fatal or errStopRequested; recoverable failures
// are handled inside.
func (l *Loop) runCycle(ctx context.Context) error {
	l.seq++

	var span trace.Span
	if l.tracer != nil {
		ctx, span = l.tracer.Start(ctx, observability.SpanCycle,
			trace.WithAttributes(attribute.Int64(observability.HelmsmanCycleSeq, int64(l.seq))))
		defer span.End()
	}

	// ACQUIRE
	veh, err := l.acquire(ctx)
	if err != nil {
		// A stop signal that lands while ReadState is blocked surfaces as
		// a context error here; that is termination, not an interface fault.
		if ctx.Err() != nil {
			return errStopRequested
		}
		if !l.interfaceFailure("acquire", err) {
			return &InterfaceError{Op: "acquire", Cause: err}
		}
		if l.lastVehicle == nil {
			// Nothing to run the pipeline against yet.
			return nil
		}
		veh = l.lastVehicle
	}
	l.lastVehicle = veh
	t := veh.T

	l.checkHardwareFaults(t)

	sensors, err := l.buildSensorFrame(ctx, t)
	if err != nil {
		return err
	}
	cycle := state.NewCycle(l.seq, veh, sensors)
	for name, value := range l.lastGood {
		cycle.SetAt(name, value, l.lastGoodT[name])
	}

	// EXECUTE-STAGES
	for _, binding := range l.graph.Bindings() {
		if err := l.runStage(ctx, binding, cycle); err != nil {
			return err
		}
	}

	// DISPATCH
	if err := l.dispatch(ctx, cycle, t); err != nil {
		return err
	}

	if l.session != nil {
		snapshot := cycle.Outputs()
		snapshot["vehicle"] = veh
		l.session.LogState(t, snapshot)
	}

	l.checkDone(veh)
	return nil
}

func (l *Loop) acquire(ctx context.Context) (*state.Vehicle, error) {
	actx, cancel := context.WithTimeout(ctx, l.ioTimeout)
	defer cancel()
	return l.vehicle.ReadState(actx)
}

// buildSensorFrame assembles the cycle's raw topic samples: the live
// source first, then replayed topics substituted over it. Live topics are
// recorded; replayed ones are not re-recorded.
func (l *Loop) buildSensorFrame(ctx context.Context, t float64) (*state.SensorFrame, error) {
	frame := &state.SensorFrame{T: t, Topics: make(map[string]any)}

	if l.topics != nil {
		tctx, cancel := context.WithTimeout(ctx, l.ioTimeout)
		live, err := l.topics.ReadTopics(tctx)
		cancel()
		if err != nil {
			l.logger.WarnContext(ctx, "sensor topic read failed", "error", err)
		}
		for name, value := range live {
			if l.replay != nil && l.replay.ReplaysTopic(name) {
				continue
			}
			frame.Topics[name] = value
			if l.session != nil {
				l.session.LogTopic(name, t, value)
			}
		}
	}

	if l.replay != nil {
		for _, name := range l.spec.Replay.Topics {
			value, _, err := l.replay.NextTopic(name, t)
			if err != nil {
				if errors.Is(err, recorder.ErrReplayExhausted) {
					l.logger.WarnContext(ctx, "replayed topic exhausted, holding last value",
						"topic", name)
				} else {
					return nil, err
				}
			}
			if value != nil {
				frame.Topics[name] = value
			}
		}
	}
	return frame, nil
}

// runStage executes one stage of the cycle: replay substitution when the
// stage is intercepted, otherwise the active (primary or recovery)
// component. A component failure freezes the stage's outputs at their
// last known-good values and reports to the recovery manager; execution
// proceeds to the next stage.
func (l *Loop) runStage(ctx context.Context, binding *graph.Binding, cycle *state.Cycle) error {
	stage := binding.Stage()
	t := cycle.T

	if l.replay != nil && l.replay.ReplaysComponent(stage) {
		outputs, fresh, err := l.replay.NextComponent(stage, t)
		if err != nil {
			if !errors.Is(err, recorder.ErrReplayExhausted) {
				return err
			}
			l.logger.WarnContext(ctx, "replayed component exhausted, holding last value",
				"stage", stage)
		}
		if fresh {
			l.commitOutputs(stage, cycle, outputs)
		}
		return nil
	}

	// Per-stage rate gating: a throttled stage keeps its carried-forward
	// outputs until its next due time.
	if rate := binding.Decl().RateHz; rate > 0 {
		if due, ok := l.nextDue[stage]; ok && t < due {
			return nil
		}
		l.nextDue[stage] = t + 1.0/rate
	}

	var span trace.Span
	sctx := ctx
	if l.tracer != nil {
		sctx, span = l.tracer.Start(ctx, observability.SpanStage,
			trace.WithAttributes(attribute.String(observability.HelmsmanStageName, stage)))
		defer span.End()
	}

	active, set := binding.Active()
	if active == nil {
		// Degraded with no recovery component: hold the safe default. For
		// the control stage that is a stop command, not the last command.
		if binding.Category() == component.CategoryControl {
			l.commitOutputs(stage, cycle, map[string]any{
				binding.Decl().OutputNames()[0]: state.Stop(),
			})
		}
		return nil
	}
	result, err := l.update(sctx, binding.Category(), active, cycle)
	if err != nil {
		stageErr := &StageError{Stage: stage, Cause: err}
		l.logger.WarnContext(ctx, "stage failed, freezing output at last known-good value",
			"stage", stage, "active_set", string(set), "error", err)
		if l.recovery != nil {
			l.recovery.OnStageFailure(stage, t, stageErr)
		}
		return nil
	}
	if l.recovery != nil {
		l.recovery.OnCycleSuccess(stage)
	}

	if result == nil {
		// No new output; previous value carries forward.
		return nil
	}
	outputs, err := outputsFor(binding.Decl(), result)
	if err != nil {
		l.logger.WarnContext(ctx, "stage produced malformed outputs",
			"stage", stage, "error", err)
		if l.recovery != nil {
			l.recovery.OnStageFailure(stage, t, &StageError{Stage: stage, Cause: err})
		}
		return nil
	}
	l.commitOutputs(stage, cycle, outputs)
	return nil
}

// update invokes the component through its capability interface. Panics
// are converted to errors so a misbehaving component cannot take down the
// control loop.
func (l *Loop) update(ctx context.Context, category component.Category, c component.Component, cycle *state.Cycle) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("component panicked: %v", rec)
		}
	}()

	switch category {
	case component.CategoryPerception:
		return c.(component.Perception).Update(ctx, cycle.Vehicle, cycle.Sensors)
	case component.CategoryPlanning:
		return c.(component.Planning).Update(ctx, cycle)
	case component.CategoryControl:
		cmd, err := c.(component.Control).Update(ctx, cycle)
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			return nil, nil
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
}

// commitOutputs writes a stage's outputs to the cycle blackboard, the
// last-known-good set, and the behavior log.
func (l *Loop) commitOutputs(stage string, cycle *state.Cycle, outputs map[string]any) {
	for name, value := range outputs {
		cycle.Set(name, value)
		l.lastGood[name] = value
		l.lastGoodT[name] = cycle.T
	}
	if l.session != nil {
		l.session.LogStage(stage, cycle.T, outputs)
	}
}

// outputsFor maps a component result onto the stage's declared output
// names. Single-output stages take the result directly; multi-output
// stages must return a map containing every declared name.
func outputsFor(decl mission.StageDecl, result any) (map[string]any, error) {
	names := decl.OutputNames()
	if len(names) == 1 {
		return map[string]any{names[0]: result}, nil
	}
	m, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("stage declares %d outputs but returned %T", len(names), result)
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		v, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("declared output %q missing from result", name)
		}
		out[name] = v
	}
	return out, nil
}

// dispatch sends the tracking output to the vehicle interface. Dispatch
// is suppressed in shadow mode (require_engaged false) and when the
// vehicle reports itself disengaged; recovery logic still runs but has no
// externally visible effect.
func (l *Loop) dispatch(ctx context.Context, cycle *state.Cycle, t float64) error {
	if l.trackingKey == "" {
		return nil
	}
	raw, ok := cycle.Get(l.trackingKey)
	if !ok {
		return nil
	}
	cmd, ok := raw.(*state.Command)
	if !ok {
		l.logger.Warn("tracking output is not a command, holding safe default",
			"key", l.trackingKey, "type", fmt.Sprintf("%T", raw))
		cmd = state.Stop()
	}
	if at, ok := cycle.UpdateTime(l.trackingKey); ok && at < cycle.T {
		l.logger.Debug("dispatching carried-forward command",
			"key", l.trackingKey, "age", cycle.T-at)
	}

	if !l.spec.Engaged() {
		return nil
	}
	if l.lastFaults["disengaged"] {
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, l.ioTimeout)
	err := l.vehicle.SendCommand(dctx, cmd)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return errStopRequested
		}
		if !l.interfaceFailure("dispatch", err) {
			return &InterfaceError{Op: "dispatch", Cause: err}
		}
		return nil
	}
	if l.session != nil {
		l.session.LogCommand(t, cmd)
	}
	return nil
}

// interfaceFailure routes a vehicle I/O error to the recovery manager.
// Returns false when the fault is loop-fatal.
func (l *Loop) interfaceFailure(op string, cause error) bool {
	t := 0.0
	if l.lastVehicle != nil {
		t = l.lastVehicle.T
	}
	l.logger.Error("vehicle interface failure", "op", op, "error", cause)
	if l.recovery == nil {
		return false
	}
	return l.recovery.OnInterfaceFailure(t, cause)
}

// checkHardwareFaults logs newly raised interface faults as session
// events. A disengaged fault only matters when the mission requires
// engagement.
func (l *Loop) checkHardwareFaults(t float64) {
	current := make(map[string]bool)
	for _, fault := range l.vehicle.HardwareFaults() {
		current[fault] = true
		if l.lastFaults[fault] {
			continue
		}
		if fault == "disengaged" && !l.spec.Engaged() {
			continue
		}
		l.logger.Warn("hardware fault raised", "fault", fault)
		l.event(t, "hardware fault: "+fault)
	}
	l.lastFaults = current
}

// checkDone detects mission completion: a vehicle brought to a stop under
// degraded trajectory tracking has finished its fail-safe maneuver.
func (l *Loop) checkDone(veh *state.Vehicle) {
	if l.recovery == nil || l.trackingKey == "" {
		return
	}
	if l.recovery.Status(mission.StageTrajectoryTracking) != recovery.StatusDegraded {
		return
	}
	if math.Abs(veh.Speed) < stoppedSpeedEps {
		l.finished = true
		l.exitReason = "vehicle stopped under degraded tracking"
	}
}

func (l *Loop) event(t float64, description string) {
	if l.session != nil {
		l.session.Event(t, description)
	}
}
