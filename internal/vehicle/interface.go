// Package vehicle defines the boundary to the vehicle I/O layer. Hardware
// and simulation implementations are interchangeable behind the Interface
// contract; only the simulator ships with the orchestrator.
package vehicle

import (
	"context"
	"fmt"
	"sync"

	"github.com/avstack-io/helmsman/internal/state"
)

// Interface is the vehicle I/O contract. ReadState and SendCommand are the
// only pipeline operations allowed to block on external I/O; callers bound
// them with a context deadline and treat a timeout as a stage-equivalent
// failure.
type Interface interface {
	// ReadState pulls the current vehicle state.
	ReadState(ctx context.Context) (*state.Vehicle, error)

	// SendCommand dispatches an actuation command.
	SendCommand(ctx context.Context, cmd *state.Command) error

	// HardwareFaults returns the currently active fault labels, such as
	// "disengaged". Empty means healthy.
	HardwareFaults() []string

	// Time returns the vehicle clock in seconds.
	Time() float64

	// CommandRateHz is the fastest rate at which the interface accepts
	// commands. The loop never dispatches more often than this.
	CommandRateHz() float64

	// Close releases the underlying transport.
	Close() error
}

// Factory constructs a vehicle interface from the mission's
// vehicle_interface args.
type Factory func(args map[string]any) (Interface, error)

// Registry maps vehicle_interface type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in simulator registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.factories["simulated"] = NewSimulated
	return r
}

// Register adds a factory for an interface type, typically a hardware
// backend supplied by the embedding application.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("vehicle interface registration requires a name and factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("vehicle interface %q is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Construct instantiates the named interface type.
func (r *Registry) Construct(name string, args map[string]any) (Interface, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vehicle interface %q is not registered", name)
	}
	iface, err := factory(args)
	if err != nil {
		return nil, fmt.Errorf("failed to construct vehicle interface %q: %w", name, err)
	}
	return iface, nil
}
