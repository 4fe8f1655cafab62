package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/avstack-io/helmsman/internal/mission"
	"github.com/avstack-io/helmsman/internal/state"
)

// Replay reads a prior recording session and substitutes its records for
// live stage execution. It is read-only over the recorded data, keeps one
// forward-only cursor per stream, and never rewinds within a run.
type Replay struct {
	store  *Store
	logger *slog.Logger

	components map[string]*cursor
	topics     map[string]*cursor
}

// cursor walks one recorded stream in timestamp order.
type cursor struct {
	records   []Record
	idx       int
	last      any
	haveLast  bool
	exhausted bool
}

// OpenReplay opens the session at folder and loads cursors for every
// component and topic named in the replay configuration. A named stream
// with no recorded data is a configuration error.
func OpenReplay(folder string, spec mission.ReplaySpec, logger *slog.Logger) (*Replay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := OpenStoreReadOnly(filepath.Join(folder, sessionDBName))
	if err != nil {
		return nil, err
	}

	r := &Replay{
		store:      store,
		logger:     logger,
		components: make(map[string]*cursor, len(spec.Components)),
		topics:     make(map[string]*cursor, len(spec.Topics)),
	}

	ctx := context.Background()
	for _, name := range spec.Components {
		records, err := store.Records(ctx, KindBehavior, name)
		if err != nil {
			store.Close()
			return nil, err
		}
		if len(records) == 0 {
			store.Close()
			return nil, wrapSession("open replay",
				fmt.Errorf("no behavior records for component %q in %s", name, folder))
		}
		r.components[name] = &cursor{records: records}
	}
	for _, name := range spec.Topics {
		records, err := store.Records(ctx, KindTopic, name)
		if err != nil {
			store.Close()
			return nil, err
		}
		if len(records) == 0 {
			store.Close()
			return nil, wrapSession("open replay",
				fmt.Errorf("no topic records for %q in %s", name, folder))
		}
		r.topics[name] = &cursor{records: records}
	}

	logger.Info("replay session opened", "dir", folder,
		"components", spec.Components, "topics", spec.Topics)
	return r, nil
}

// ReplaysComponent reports whether the stage's output is substituted from
// the recording.
func (r *Replay) ReplaysComponent(stage string) bool {
	_, ok := r.components[stage]
	return ok
}

// ReplaysTopic reports whether the topic is substituted from the recording.
func (r *Replay) ReplaysTopic(topic string) bool {
	_, ok := r.topics[topic]
	return ok
}

// NextComponent advances the stage's cursor through all records due at or
// before now and returns the stage outputs to substitute. fresh is false
// when the held value is being repeated. ErrReplayExhausted is returned
// exactly once, when the stream first runs out while execution continues;
// the held outputs remain valid.
func (r *Replay) NextComponent(stage string, now float64) (outputs map[string]any, fresh bool, err error) {
	c, ok := r.components[stage]
	if !ok {
		return nil, false, nil
	}
	for c.idx < len(c.records) && c.records[c.idx].T <= now {
		decoded, derr := decodeOutputs(c.records[c.idx].Payload)
		if derr != nil {
			return nil, false, wrapSession("decode replay record",
				fmt.Errorf("component %q at t=%v: %w", stage, c.records[c.idx].T, derr))
		}
		c.last = decoded
		c.haveLast = true
		c.idx++
		fresh = true
	}
	if !fresh && !c.haveLast {
		return nil, false, nil
	}
	held, _ := c.last.(map[string]any)
	if !fresh && c.idx >= len(c.records) && !c.exhausted {
		c.exhausted = true
		return held, false, fmt.Errorf("component %q: %w", stage, ErrReplayExhausted)
	}
	return held, fresh, nil
}

// NextTopic behaves like NextComponent for a raw topic stream.
func (r *Replay) NextTopic(topic string, now float64) (value any, fresh bool, err error) {
	c, ok := r.topics[topic]
	if !ok {
		return nil, false, nil
	}
	for c.idx < len(c.records) && c.records[c.idx].T <= now {
		var decoded any
		if derr := json.Unmarshal(c.records[c.idx].Payload, &decoded); derr != nil {
			return nil, false, wrapSession("decode replay record",
				fmt.Errorf("topic %q at t=%v: %w", topic, c.records[c.idx].T, derr))
		}
		c.last = decoded
		c.haveLast = true
		c.idx++
		fresh = true
	}
	if !c.haveLast {
		return nil, false, nil
	}
	if !fresh && c.idx >= len(c.records) && !c.exhausted {
		c.exhausted = true
		return c.last, false, fmt.Errorf("topic %q: %w", topic, ErrReplayExhausted)
	}
	return c.last, fresh, nil
}

// Close releases the store handle. Recorded data is never mutated.
func (r *Replay) Close() error {
	return r.store.Close()
}

// decodeOutputs rebuilds a behavior record's output map, restoring the
// concrete types for the conventional blackboard names so downstream live
// stages see the same types they would in a live run. Unrecognized names
// decode to generic values.
func decodeOutputs(payload json.RawMessage) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(raw))
	for name, data := range raw {
		v, err := decodeValue(name, data)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func decodeValue(name string, data json.RawMessage) (any, error) {
	switch name {
	case "vehicle_state":
		var v state.Vehicle
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case "route":
		var v state.Route
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case "trajectory":
		var v state.Trajectory
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case "command":
		var v state.Command
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case "agents":
		var v []state.Agent
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
