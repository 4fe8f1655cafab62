package state

import (
	"github.com/avstack-io/helmsman/internal/types"
)

// Cycle is the blackboard for one pass of the execution loop. It owns the
// vehicle and sensor snapshots acquired for the cycle and collects stage
// outputs as stages run. A Cycle is written by the single control goroutine
// only; the recorder receives copies via Outputs.
type Cycle struct {
	ID  types.ID
	Seq uint64

	// T is the vehicle time at ACQUIRE.
	T float64

	Vehicle *Vehicle
	Sensors *SensorFrame

	outputs map[string]any
	updated map[string]float64
}

// NewCycle creates the blackboard for one execution cycle.
func NewCycle(seq uint64, vehicle *Vehicle, sensors *SensorFrame) *Cycle {
	t := 0.0
	if vehicle != nil {
		t = vehicle.T
	}
	return &Cycle{
		ID:      types.NewID(),
		Seq:     seq,
		T:       t,
		Vehicle: vehicle,
		Sensors: sensors,
		outputs: make(map[string]any),
		updated: make(map[string]float64),
	}
}

// Set records a stage output under the given name, stamped with the
// cycle's vehicle time.
func (c *Cycle) Set(name string, value any) {
	c.outputs[name] = value
	c.updated[name] = c.T
}

// SetAt records a stage output with an explicit timestamp. Used when a
// frozen last-known-good value is carried forward from an earlier cycle.
func (c *Cycle) SetAt(name string, value any, t float64) {
	c.outputs[name] = value
	c.updated[name] = t
}

// Get returns the named output and whether it has been produced this cycle.
func (c *Cycle) Get(name string) (any, bool) {
	v, ok := c.outputs[name]
	return v, ok
}

// UpdateTime returns the vehicle time at which the named output was set.
func (c *Cycle) UpdateTime(name string) (float64, bool) {
	t, ok := c.updated[name]
	return t, ok
}

// Outputs returns a copy of all outputs produced so far, for logging.
func (c *Cycle) Outputs() map[string]any {
	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}
