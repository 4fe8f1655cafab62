package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMerge(t *testing.T) {
	t.Run("maps merge recursively", func(t *testing.T) {
		base := map[string]any{
			"drive": map[string]any{
				"planning": map[string]any{
					"motion_planning":     "a",
					"trajectory_tracking": "b",
				},
			},
			"mode": "hardware",
		}
		overlay := map[string]any{
			"drive": map[string]any{
				"planning": map[string]any{
					"motion_planning": "c",
				},
			},
		}

		out := DeepMerge(base, overlay)

		planning := out["drive"].(map[string]any)["planning"].(map[string]any)
		assert.Equal(t, "c", planning["motion_planning"])
		assert.Equal(t, "b", planning["trajectory_tracking"])
		assert.Equal(t, "hardware", out["mode"])
	})

	t.Run("sequences are replaced wholesale", func(t *testing.T) {
		base := map[string]any{"topics": []any{"a", "b", "c"}}
		overlay := map[string]any{"topics": []any{"d"}}

		out := DeepMerge(base, overlay)
		assert.Equal(t, []any{"d"}, out["topics"])
	})

	t.Run("scalars are replaced", func(t *testing.T) {
		base := map[string]any{"mode": "hardware", "cadence": 10.0}
		overlay := map[string]any{"mode": "simulation"}

		out := DeepMerge(base, overlay)
		assert.Equal(t, "simulation", out["mode"])
		assert.Equal(t, 10.0, out["cadence"])
	})

	t.Run("explicit null replaces the base value", func(t *testing.T) {
		base := map[string]any{
			"perception": map[string]any{"agent_detection": "detector"},
		}
		overlay := map[string]any{
			"perception": map[string]any{"agent_detection": nil},
		}

		out := DeepMerge(base, overlay)
		perception := out["perception"].(map[string]any)
		v, ok := perception["agent_detection"]
		require.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("overlay-only keys are added", func(t *testing.T) {
		out := DeepMerge(map[string]any{"a": 1}, map[string]any{"b": 2})
		assert.Equal(t, 1, out["a"])
		assert.Equal(t, 2, out["b"])
	})

	t.Run("merge is idempotent", func(t *testing.T) {
		base := map[string]any{
			"a": map[string]any{"b": 1, "c": []any{1, 2}},
			"d": "x",
		}
		overlay := map[string]any{
			"a": map[string]any{"b": 2},
			"d": "y",
		}

		once := DeepMerge(base, overlay)
		twice := DeepMerge(once, overlay)
		assert.Equal(t, once, twice)
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		base := map[string]any{"a": map[string]any{"b": 1}}
		overlay := map[string]any{"a": map[string]any{"b": 2}}

		_ = DeepMerge(base, overlay)
		assert.Equal(t, 1, base["a"].(map[string]any)["b"])
	})
}
