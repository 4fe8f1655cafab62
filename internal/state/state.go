// Package state defines the data values that flow between pipeline stages:
// vehicle and sensor snapshots, planning artifacts, and actuation commands.
package state

import "math"

// Pose is a planar vehicle pose in the mission frame.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// Vehicle is a snapshot of the vehicle read at the start of a cycle.
type Vehicle struct {
	// T is the vehicle clock in seconds. All per-cycle timestamps use it.
	T float64 `json:"t"`

	Pose Pose `json:"pose"`

	// Speed is the signed longitudinal speed in m/s.
	Speed float64 `json:"speed"`

	// Steering is the current front wheel angle in radians.
	Steering float64 `json:"steering"`

	// Engaged reports whether the drive-by-wire system accepts commands.
	Engaged bool `json:"engaged"`
}

// SensorFrame carries the latest raw sample per topic, keyed by topic name.
type SensorFrame struct {
	T      float64        `json:"t"`
	Topics map[string]any `json:"topics,omitempty"`
}

// Topic returns the latest sample for the named topic, or nil.
func (f *SensorFrame) Topic(name string) any {
	if f == nil || f.Topics == nil {
		return nil
	}
	return f.Topics[name]
}

// Agent is a detected external agent (vehicle, pedestrian, obstacle).
type Agent struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// Route is an untimed sequence of waypoints produced by route planning.
type Route struct {
	Points [][2]float64 `json:"points"`
}

// Trajectory is a timed path produced by motion planning. Times, when
// present, parallel Points.
type Trajectory struct {
	Points [][2]float64 `json:"points"`
	Times  []float64    `json:"times,omitempty"`

	// Speed is the desired tracking speed in m/s when Times is absent.
	Speed float64 `json:"speed,omitempty"`
}

// Closest returns the index of the trajectory point nearest to (x, y)
// at or after the from index. Returns -1 for an empty trajectory.
func (tr *Trajectory) Closest(x, y float64, from int) int {
	if tr == nil || len(tr.Points) == 0 {
		return -1
	}
	if from < 0 {
		from = 0
	}
	best := -1
	bestDist := math.Inf(1)
	for i := from; i < len(tr.Points); i++ {
		dx := tr.Points[i][0] - x
		dy := tr.Points[i][1] - y
		if d := dx*dx + dy*dy; d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Command is the actuation output dispatched to the vehicle interface.
// Speed is a desired longitudinal speed; zero means stop.
type Command struct {
	Speed    float64 `json:"speed"`
	Steering float64 `json:"steering"`
}

// Stop returns the fail-safe zero-velocity command.
func Stop() *Command {
	return &Command{}
}
