package component

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstack-io/helmsman/internal/state"
)

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	for _, id := range []string{
		"sim.StateEstimator",
		"sim.AgentDetector",
		"planning.StaticRoutePlanner",
		"planning.SimpleMotionPlanner",
		"control.PurePursuit",
		"control.StopTracker",
		"passthrough.perception",
		"passthrough.planning",
	} {
		assert.Contains(t, r.Identifiers(), id, "builtin %s not registered", id)
	}
}

func TestStateEstimator(t *testing.T) {
	c, err := newStateEstimator(nil)
	require.NoError(t, err)
	e := c.(Perception)

	t.Run("copies the vehicle snapshot", func(t *testing.T) {
		vehicle := &state.Vehicle{T: 1.5, Speed: 2.0}
		out, err := e.Update(context.Background(), vehicle, nil)
		require.NoError(t, err)
		estimate := out.(*state.Vehicle)
		assert.Equal(t, *vehicle, *estimate)
		assert.NotSame(t, vehicle, estimate)
	})

	t.Run("fails without a vehicle reading", func(t *testing.T) {
		_, err := e.Update(context.Background(), nil, nil)
		assert.Error(t, err)
	})
}

func TestAgentDetector(t *testing.T) {
	c, err := newAgentDetector(map[string]any{"topic": "lidar_agents"})
	require.NoError(t, err)
	d := c.(Perception)

	t.Run("surfaces agents from the configured topic", func(t *testing.T) {
		agents := []state.Agent{{ID: "ped-1", X: 3, Y: 4}}
		frame := &state.SensorFrame{Topics: map[string]any{"lidar_agents": agents}}
		out, err := d.Update(context.Background(), &state.Vehicle{}, frame)
		require.NoError(t, err)
		assert.Equal(t, agents, out)
	})

	t.Run("silent topic yields an empty list", func(t *testing.T) {
		out, err := d.Update(context.Background(), &state.Vehicle{}, &state.SensorFrame{})
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("non-string topic argument is rejected", func(t *testing.T) {
		_, err := newAgentDetector(map[string]any{"topic": 7})
		assert.Error(t, err)
	})
}

func TestStaticRoutePlanner(t *testing.T) {
	t.Run("requires waypoints", func(t *testing.T) {
		_, err := newStaticRoutePlanner(nil)
		assert.Error(t, err)
	})

	t.Run("rejects malformed waypoints", func(t *testing.T) {
		_, err := newStaticRoutePlanner(map[string]any{
			"waypoints": []any{[]any{1.0}},
		})
		assert.Error(t, err)
	})

	t.Run("emits the fixed route every cycle", func(t *testing.T) {
		c, err := newStaticRoutePlanner(map[string]any{
			"waypoints": []any{[]any{0.0, 0.0}, []any{10, 0}},
		})
		require.NoError(t, err)
		p := c.(Planning)

		cycle := state.NewCycle(1, &state.Vehicle{}, nil)
		out, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		route := out.(*state.Route)
		assert.Equal(t, [][2]float64{{0, 0}, {10, 0}}, route.Points)
	})
}

func TestSimpleMotionPlanner(t *testing.T) {
	c, err := newSimpleMotionPlanner(map[string]any{"desired_speed": 3.0})
	require.NoError(t, err)
	p := c.(Planning)

	t.Run("converts the route to a trajectory", func(t *testing.T) {
		cycle := state.NewCycle(1, &state.Vehicle{}, nil)
		cycle.Set(KeyRoute, &state.Route{Points: [][2]float64{{0, 0}, {5, 0}}})

		out, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		traj := out.(*state.Trajectory)
		assert.Equal(t, [][2]float64{{0, 0}, {5, 0}}, traj.Points)
		assert.Equal(t, 3.0, traj.Speed)
	})

	t.Run("no route means no output", func(t *testing.T) {
		cycle := state.NewCycle(1, &state.Vehicle{}, nil)
		out, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("wrong route type is an error", func(t *testing.T) {
		cycle := state.NewCycle(1, &state.Vehicle{}, nil)
		cycle.Set(KeyRoute, "not a route")
		_, err := p.Update(context.Background(), cycle)
		assert.Error(t, err)
	})
}

func TestPurePursuit(t *testing.T) {
	newTracker := func(t *testing.T) Control {
		c, err := newPurePursuit(nil)
		require.NoError(t, err)
		return c.(Control)
	}

	straight := &state.Trajectory{
		Points: [][2]float64{{0, 0}, {10, 0}, {20, 0}, {30, 0}},
		Speed:  2.0,
	}

	t.Run("holds without a trajectory", func(t *testing.T) {
		p := newTracker(t)
		cycle := state.NewCycle(1, &state.Vehicle{}, nil)
		cmd, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		assert.Equal(t, state.Stop(), cmd)
	})

	t.Run("drives straight on a straight path", func(t *testing.T) {
		p := newTracker(t)
		cycle := state.NewCycle(1, &state.Vehicle{Pose: state.Pose{X: 0, Y: 0, Yaw: 0}}, nil)
		cycle.Set(KeyTrajectory, straight)

		cmd, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		assert.Equal(t, 2.0, cmd.Speed)
		assert.InDelta(t, 0.0, cmd.Steering, 1e-9)
	})

	t.Run("steers toward a path offset to the left", func(t *testing.T) {
		p := newTracker(t)
		// Vehicle below the path, heading along +x: the lookahead point is
		// up and to the left, so steering must be positive.
		cycle := state.NewCycle(1, &state.Vehicle{Pose: state.Pose{X: 0, Y: -2, Yaw: 0}}, nil)
		cycle.Set(KeyTrajectory, straight)

		cmd, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		assert.Greater(t, cmd.Steering, 0.0)
	})

	t.Run("steering is clamped", func(t *testing.T) {
		c, err := newPurePursuit(map[string]any{"max_steering": 0.3})
		require.NoError(t, err)
		p := c.(Control)

		// Target almost directly behind.
		cycle := state.NewCycle(1, &state.Vehicle{Pose: state.Pose{X: 25, Y: 10, Yaw: 0}}, nil)
		cycle.Set(KeyTrajectory, straight)

		cmd, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		assert.LessOrEqual(t, math.Abs(cmd.Steering), 0.3+1e-9)
	})

	t.Run("stops at the end of the trajectory", func(t *testing.T) {
		p := newTracker(t)
		cycle := state.NewCycle(1, &state.Vehicle{Pose: state.Pose{X: 29.8, Y: 0, Yaw: 0}}, nil)
		cycle.Set(KeyTrajectory, straight)

		cmd, err := p.Update(context.Background(), cycle)
		require.NoError(t, err)
		assert.Equal(t, state.Stop(), cmd)
	})

	t.Run("lookahead grows with speed", func(t *testing.T) {
		curve := &state.Trajectory{
			Points: [][2]float64{{0, 0}, {5, 0}, {10, 2}, {15, 6}},
			Speed:  2.0,
		}
		slow := newTracker(t)
		fast := newTracker(t)

		slowCycle := state.NewCycle(1, &state.Vehicle{Speed: 0}, nil)
		slowCycle.Set(KeyTrajectory, curve)
		fastCycle := state.NewCycle(1, &state.Vehicle{Speed: 5}, nil)
		fastCycle.Set(KeyTrajectory, curve)

		slowCmd, err := slow.Update(context.Background(), slowCycle)
		require.NoError(t, err)
		fastCmd, err := fast.Update(context.Background(), fastCycle)
		require.NoError(t, err)

		// The faster vehicle looks further ahead, where the path bends more,
		// so it commits to more steering.
		assert.Greater(t, fastCmd.Steering, slowCmd.Steering)
	})
}

func TestStopTracker(t *testing.T) {
	c, err := newStopTracker(nil)
	require.NoError(t, err)
	s := c.(Control)

	cycle := state.NewCycle(1, &state.Vehicle{Speed: 5}, nil)
	cmd, err := s.Update(context.Background(), cycle)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cmd.Speed)
	assert.Equal(t, 0.0, cmd.Steering)
}

func TestPassthroughs(t *testing.T) {
	p, err := newPerceptionPassthrough(nil)
	require.NoError(t, err)
	out, err := p.(Perception).Update(context.Background(), &state.Vehicle{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	pl, err := newPlanningPassthrough(nil)
	require.NoError(t, err)
	out, err = pl.(Planning).Update(context.Background(), state.NewCycle(1, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, out)
}
