package vehicle

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/avstack-io/helmsman/internal/state"
)

// Simulated is a fixed-step kinematic bicycle-model vehicle. Each ReadState
// advances the simulation by one step under the last dispatched command,
// which keeps runs deterministic for tests and replay verification.
type Simulated struct {
	mu sync.Mutex

	t        float64
	dt       float64
	pose     state.Pose
	speed    float64
	steering float64

	wheelbase  float64
	maxAccel   float64
	maxDecel   float64
	cmdRateHz  float64
	engaged    bool
	lastCmd    *state.Command
	closed     bool
}

// NewSimulated constructs the simulator. Recognized args: dt, wheelbase,
// max_accel, max_decel, command_rate_hz, x, y, yaw.
func NewSimulated(args map[string]any) (Interface, error) {
	s := &Simulated{
		dt:        0.02,
		wheelbase: 2.56,
		maxAccel:  2.0,
		maxDecel:  4.0,
		cmdRateHz: 50.0,
		engaged:   true,
	}
	read := func(key string, dst *float64) error {
		raw, ok := args[key]
		if !ok {
			return nil
		}
		switch v := raw.(type) {
		case float64:
			*dst = v
		case int:
			*dst = float64(v)
		default:
			return fmt.Errorf("simulated vehicle arg %q must be a number, got %T", key, raw)
		}
		return nil
	}
	for key, dst := range map[string]*float64{
		"dt":              &s.dt,
		"wheelbase":       &s.wheelbase,
		"max_accel":       &s.maxAccel,
		"max_decel":       &s.maxDecel,
		"command_rate_hz": &s.cmdRateHz,
		"x":               &s.pose.X,
		"y":               &s.pose.Y,
		"yaw":             &s.pose.Yaw,
	} {
		if err := read(key, dst); err != nil {
			return nil, err
		}
	}
	if s.dt <= 0 {
		return nil, fmt.Errorf("simulated vehicle arg \"dt\" must be positive")
	}
	return s, nil
}

// ReadState steps the simulation under the last command and returns the
// resulting snapshot.
func (s *Simulated) ReadState(ctx context.Context) (*state.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("simulated vehicle is closed")
	}

	s.step()

	return &state.Vehicle{
		T:        s.t,
		Pose:     s.pose,
		Speed:    s.speed,
		Steering: s.steering,
		Engaged:  s.engaged,
	}, nil
}

// step integrates one dt of bicycle-model kinematics toward the commanded
// speed and steering.
func (s *Simulated) step() {
	target := 0.0
	if s.lastCmd != nil {
		target = s.lastCmd.Speed
		s.steering = s.lastCmd.Steering
	}

	dv := target - s.speed
	limit := s.maxAccel * s.dt
	if dv < 0 {
		limit = s.maxDecel * s.dt
	}
	if math.Abs(dv) > limit {
		dv = math.Copysign(limit, dv)
	}
	s.speed += dv

	s.pose.X += s.speed * math.Cos(s.pose.Yaw) * s.dt
	s.pose.Y += s.speed * math.Sin(s.pose.Yaw) * s.dt
	s.pose.Yaw += s.speed / s.wheelbase * math.Tan(s.steering) * s.dt
	s.t += s.dt
}

// SendCommand stores the command applied on subsequent steps.
func (s *Simulated) SendCommand(ctx context.Context, cmd *state.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cmd == nil {
		return fmt.Errorf("nil command")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("simulated vehicle is closed")
	}
	c := *cmd
	s.lastCmd = &c
	return nil
}

// HardwareFaults reports "disengaged" when the simulated drive-by-wire is
// disengaged via Disengage.
func (s *Simulated) HardwareFaults() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.engaged {
		return []string{"disengaged"}
	}
	return nil
}

// Time returns the simulated vehicle clock.
func (s *Simulated) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

// CommandRateHz returns the configured command acceptance rate.
func (s *Simulated) CommandRateHz() float64 { return s.cmdRateHz }

// Close stops the simulation.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Disengage flips the simulated drive-by-wire out of engaged mode. Test
// hook for shadow-mode and fault behavior.
func (s *Simulated) Disengage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engaged = false
}

// Speed returns the current simulated speed.
func (s *Simulated) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// LastCommand returns the most recently dispatched command, or nil.
func (s *Simulated) LastCommand() *state.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCmd == nil {
		return nil
	}
	c := *s.lastCmd
	return &c
}
