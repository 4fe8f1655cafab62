package component

import (
	"context"
	"fmt"
	"math"

	"github.com/avstack-io/helmsman/internal/state"
)

// Conventional blackboard names produced by the built-in components.
const (
	KeyVehicleState = "vehicle_state"
	KeyAgents       = "agents"
	KeyRoute        = "route"
	KeyTrajectory   = "trajectory"
)

// RegisterBuiltins registers the reference components shipped with the
// orchestrator: simulation-grade perception stubs, simple planners, the
// pure-pursuit tracker and the fail-safe stop tracker.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Factory{
		"sim.StateEstimator":           newStateEstimator,
		"sim.AgentDetector":            newAgentDetector,
		"planning.StaticRoutePlanner":  newStaticRoutePlanner,
		"planning.SimpleMotionPlanner": newSimpleMotionPlanner,
		"control.PurePursuit":          newPurePursuit,
		"control.StopTracker":          newStopTracker,
		"passthrough.perception":       newPerceptionPassthrough,
		"passthrough.planning":         newPlanningPassthrough,
	}
	for id, factory := range builtins {
		if err := r.Register(id, factory); err != nil {
			return err
		}
	}
	return nil
}

// floatArg reads a numeric constructor argument with a default.
func floatArg(args map[string]any, key string, def float64) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, raw)
	}
}

// pointsArg reads a waypoint list argument: a sequence of [x, y] pairs.
func pointsArg(args map[string]any, key string) ([][2]float64, error) {
	raw, ok := args[key]
	if !ok {
		return nil, nil
	}
	seq, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a list of [x, y] pairs", key)
	}
	points := make([][2]float64, 0, len(seq))
	for i, item := range seq {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("argument %q entry %d is not an [x, y] pair", key, i)
		}
		var pt [2]float64
		for j, coord := range pair {
			switch c := coord.(type) {
			case float64:
				pt[j] = c
			case int:
				pt[j] = float64(c)
			default:
				return nil, fmt.Errorf("argument %q entry %d has non-numeric coordinate", key, i)
			}
		}
		points = append(points, pt)
	}
	return points, nil
}

// stateEstimator passes the acquired vehicle snapshot through as the state
// estimate. Good enough for simulation mode, where the interface's reading
// is ground truth.
type stateEstimator struct{ Base }

func newStateEstimator(args map[string]any) (Component, error) {
	return &stateEstimator{}, nil
}

func (e *stateEstimator) Update(ctx context.Context, vehicle *state.Vehicle, sensors *state.SensorFrame) (any, error) {
	if vehicle == nil {
		return nil, fmt.Errorf("no vehicle reading available")
	}
	estimate := *vehicle
	return &estimate, nil
}

// agentDetector surfaces agents published on the configured sensor topic,
// defaulting to "agents". Produces an empty list when the topic is silent.
type agentDetector struct {
	Base
	topic string
}

func newAgentDetector(args map[string]any) (Component, error) {
	topic := "agents"
	if raw, ok := args["topic"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("argument \"topic\" must be a string")
		}
		topic = s
	}
	return &agentDetector{topic: topic}, nil
}

func (d *agentDetector) Update(ctx context.Context, vehicle *state.Vehicle, sensors *state.SensorFrame) (any, error) {
	if agents, ok := sensors.Topic(d.topic).([]state.Agent); ok {
		return agents, nil
	}
	return []state.Agent{}, nil
}

// staticRoutePlanner emits a fixed route from its waypoints argument.
type staticRoutePlanner struct {
	Base
	route *state.Route
}

func newStaticRoutePlanner(args map[string]any) (Component, error) {
	points, err := pointsArg(args, "waypoints")
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("argument \"waypoints\" is required")
	}
	return &staticRoutePlanner{route: &state.Route{Points: points}}, nil
}

func (p *staticRoutePlanner) Update(ctx context.Context, cycle *state.Cycle) (any, error) {
	return p.route, nil
}

// simpleMotionPlanner turns the current route into an untimed trajectory
// tracked at a constant desired speed.
type simpleMotionPlanner struct {
	Base
	desiredSpeed float64
}

func newSimpleMotionPlanner(args map[string]any) (Component, error) {
	speed, err := floatArg(args, "desired_speed", 2.0)
	if err != nil {
		return nil, err
	}
	return &simpleMotionPlanner{desiredSpeed: speed}, nil
}

func (p *simpleMotionPlanner) Update(ctx context.Context, cycle *state.Cycle) (any, error) {
	raw, ok := cycle.Get(KeyRoute)
	if !ok {
		return nil, nil
	}
	route, ok := raw.(*state.Route)
	if !ok || len(route.Points) == 0 {
		return nil, fmt.Errorf("route output has unexpected type %T", raw)
	}
	return &state.Trajectory{Points: route.Points, Speed: p.desiredSpeed}, nil
}

// purePursuit is a pure-pursuit trajectory tracker on a bicycle model: it
// chases a point on the trajectory a speed-scaled lookahead distance ahead
// of the closest point and steers along the resulting arc.
type purePursuit struct {
	Base
	lookahead      float64
	lookaheadScale float64
	wheelbase      float64
	maxSteer       float64
	pathIndex      int
}

func newPurePursuit(args map[string]any) (Component, error) {
	p := &purePursuit{}
	var err error
	if p.lookahead, err = floatArg(args, "lookahead", 4.0); err != nil {
		return nil, err
	}
	if p.lookaheadScale, err = floatArg(args, "lookahead_scale", 3.0); err != nil {
		return nil, err
	}
	if p.wheelbase, err = floatArg(args, "wheelbase", 2.56); err != nil {
		return nil, err
	}
	if p.maxSteer, err = floatArg(args, "max_steering", 0.61); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *purePursuit) Update(ctx context.Context, cycle *state.Cycle) (*state.Command, error) {
	raw, ok := cycle.Get(KeyTrajectory)
	if !ok {
		// No plan yet. Hold the vehicle rather than track nothing.
		return state.Stop(), nil
	}
	traj, ok := raw.(*state.Trajectory)
	if !ok || len(traj.Points) == 0 {
		return nil, fmt.Errorf("trajectory output has unexpected type %T", raw)
	}
	vehicle := cycle.Vehicle
	if vehicle == nil {
		return nil, fmt.Errorf("no vehicle reading available")
	}

	closest := traj.Closest(vehicle.Pose.X, vehicle.Pose.Y, p.pathIndex)
	if closest < 0 {
		return state.Stop(), nil
	}
	p.pathIndex = closest

	lookDist := p.lookahead + p.lookaheadScale*math.Abs(vehicle.Speed)
	target, atEnd := lookaheadPoint(traj.Points, closest, lookDist)
	if atEnd {
		remaining := math.Hypot(target[0]-vehicle.Pose.X, target[1]-vehicle.Pose.Y)
		if remaining < 0.5 {
			return state.Stop(), nil
		}
	}

	dx := target[0] - vehicle.Pose.X
	dy := target[1] - vehicle.Pose.Y
	dist := math.Hypot(dx, dy)
	if dist < 1e-6 {
		return state.Stop(), nil
	}
	alpha := normalizeAngle(math.Atan2(dy, dx) - vehicle.Pose.Yaw)
	steer := math.Atan2(2*p.wheelbase*math.Sin(alpha), dist)
	steer = math.Max(-p.maxSteer, math.Min(p.maxSteer, steer))

	return &state.Command{Speed: traj.Speed, Steering: steer}, nil
}

// lookaheadPoint walks forward from index from until the accumulated arc
// length reaches dist. Returns the trajectory's last point, and true, when
// the lookahead runs off the end.
func lookaheadPoint(points [][2]float64, from int, dist float64) ([2]float64, bool) {
	acc := 0.0
	for i := from; i < len(points)-1; i++ {
		seg := math.Hypot(points[i+1][0]-points[i][0], points[i+1][1]-points[i][1])
		if acc+seg >= dist {
			frac := 0.0
			if seg > 1e-9 {
				frac = (dist - acc) / seg
			}
			return [2]float64{
				points[i][0] + frac*(points[i+1][0]-points[i][0]),
				points[i][1] + frac*(points[i+1][1]-points[i][1]),
			}, false
		}
		acc += seg
	}
	return points[len(points)-1], true
}

// normalizeAngle wraps an angle to (-pi, pi].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// stopTracker is the fail-safe control component: it always commands zero
// velocity with centered steering.
type stopTracker struct{ Base }

func newStopTracker(args map[string]any) (Component, error) {
	return &stopTracker{}, nil
}

func (s *stopTracker) Update(ctx context.Context, cycle *state.Cycle) (*state.Command, error) {
	return state.Stop(), nil
}

// perceptionPassthrough produces no output; the loop carries the previous
// value forward. Used as the implicit recovery binding for perception
// stages with no declared fallback.
type perceptionPassthrough struct{ Base }

func newPerceptionPassthrough(args map[string]any) (Component, error) {
	return &perceptionPassthrough{}, nil
}

func (perceptionPassthrough) Update(ctx context.Context, vehicle *state.Vehicle, sensors *state.SensorFrame) (any, error) {
	return nil, nil
}

// planningPassthrough produces no output; the loop carries the previous
// value forward.
type planningPassthrough struct{ Base }

func newPlanningPassthrough(args map[string]any) (Component, error) {
	return &planningPassthrough{}, nil
}

func (planningPassthrough) Update(ctx context.Context, cycle *state.Cycle) (any, error) {
	return nil, nil
}
