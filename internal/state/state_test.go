package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrajectoryClosest(t *testing.T) {
	traj := &Trajectory{Points: [][2]float64{{0, 0}, {10, 0}, {20, 0}, {30, 0}}}

	t.Run("nearest point wins", func(t *testing.T) {
		assert.Equal(t, 1, traj.Closest(11, 1, 0))
		assert.Equal(t, 0, traj.Closest(-5, 0, 0))
		assert.Equal(t, 3, traj.Closest(100, 0, 0))
	})

	t.Run("search starts at the from index", func(t *testing.T) {
		// Point 0 is nearest but the cursor is already past it.
		assert.Equal(t, 2, traj.Closest(1, 0, 2))
	})

	t.Run("negative from is clamped", func(t *testing.T) {
		assert.Equal(t, 0, traj.Closest(0, 0, -3))
	})

	t.Run("empty and nil trajectories", func(t *testing.T) {
		assert.Equal(t, -1, (&Trajectory{}).Closest(0, 0, 0))
		var empty *Trajectory
		assert.Equal(t, -1, empty.Closest(0, 0, 0))
	})
}

func TestSensorFrameTopic(t *testing.T) {
	frame := &SensorFrame{Topics: map[string]any{"camera": 42}}
	assert.Equal(t, 42, frame.Topic("camera"))
	assert.Nil(t, frame.Topic("lidar"))

	var nilFrame *SensorFrame
	assert.Nil(t, nilFrame.Topic("camera"))
	assert.Nil(t, (&SensorFrame{}).Topic("camera"))
}

func TestStop(t *testing.T) {
	cmd := Stop()
	assert.Equal(t, 0.0, cmd.Speed)
	assert.Equal(t, 0.0, cmd.Steering)
}

func TestCycle(t *testing.T) {
	vehicle := &Vehicle{T: 2.5, Speed: 1.0}
	frame := &SensorFrame{T: 2.5}

	t.Run("takes its time from the vehicle snapshot", func(t *testing.T) {
		c := NewCycle(7, vehicle, frame)
		assert.Equal(t, uint64(7), c.Seq)
		assert.Equal(t, 2.5, c.T)
		assert.NoError(t, c.ID.Validate())

		c = NewCycle(1, nil, nil)
		assert.Equal(t, 0.0, c.T)
	})

	t.Run("set stamps with cycle time", func(t *testing.T) {
		c := NewCycle(1, vehicle, frame)
		c.Set("trajectory", "value")

		v, ok := c.Get("trajectory")
		require.True(t, ok)
		assert.Equal(t, "value", v)

		at, ok := c.UpdateTime("trajectory")
		require.True(t, ok)
		assert.Equal(t, 2.5, at)
	})

	t.Run("set-at preserves the original timestamp", func(t *testing.T) {
		c := NewCycle(1, vehicle, frame)
		c.SetAt("trajectory", "stale", 1.0)

		at, ok := c.UpdateTime("trajectory")
		require.True(t, ok)
		assert.Equal(t, 1.0, at, "carried-forward values keep their production time")
	})

	t.Run("missing output", func(t *testing.T) {
		c := NewCycle(1, vehicle, frame)
		_, ok := c.Get("nothing")
		assert.False(t, ok)
		_, ok = c.UpdateTime("nothing")
		assert.False(t, ok)
	})

	t.Run("outputs returns a copy", func(t *testing.T) {
		c := NewCycle(1, vehicle, frame)
		c.Set("a", 1)

		out := c.Outputs()
		out["b"] = 2
		_, ok := c.Get("b")
		assert.False(t, ok)
	})
}
