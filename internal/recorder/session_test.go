package recorder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstack-io/helmsman/internal/mission"
	"github.com/avstack-io/helmsman/internal/state"
)

func newTestSession(t *testing.T, logSpec mission.LogSpec) (*Session, string) {
	t.Helper()
	root := t.TempDir()
	if logSpec.Prefix == "" {
		logSpec.Prefix = "test-session"
	}
	s, err := NewSession(root, logSpec, SessionOptions{
		MissionName: "fixed_route",
		Variants:    []string{"sim"},
	}, nil)
	require.NoError(t, err)
	return s, filepath.Join(root, logSpec.Prefix)
}

func TestSessionLifecycle(t *testing.T) {
	s, dir := newTestSession(t, mission.LogSpec{})
	assert.Equal(t, dir, s.Dir())
	assert.NoError(t, s.id.Validate())

	meta, err := ReadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), meta.SessionID)
	assert.Equal(t, "fixed_route", meta.Mission)
	assert.Equal(t, []string{"sim"}, meta.Variants)
	assert.False(t, meta.StartedAt.IsZero())
	assert.True(t, meta.EndedAt.IsZero(), "end time is only written at close")

	s.SetExitReason("normal exit")
	require.NoError(t, s.Close())

	meta, err = ReadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, "normal exit", meta.ExitReason)
	assert.False(t, meta.EndedAt.IsZero())
}

func TestSessionExitReasonFirstWins(t *testing.T) {
	s, dir := newTestSession(t, mission.LogSpec{})
	s.SetExitReason("stage failure")
	s.SetExitReason("stop requested")
	require.NoError(t, s.Close())

	meta, err := ReadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, "stage failure", meta.ExitReason)
}

func TestSessionRecording(t *testing.T) {
	logSpec := mission.LogSpec{
		Topics:           []string{"camera"},
		Components:       []string{"motion_planning"},
		StateRate:        100,
		VehicleInterface: true,
	}
	s, dir := newTestSession(t, logSpec)

	s.LogTopic("camera", 0.1, map[string]any{"frame": 1})
	s.LogTopic("lidar", 0.1, map[string]any{"points": 99}) // not configured
	s.LogStage("motion_planning", 0.1, map[string]any{
		"trajectory": &state.Trajectory{Points: [][2]float64{{0, 0}, {1, 0}}, Speed: 2},
	})
	s.LogStage("route_planning", 0.1, map[string]any{"route": "x"}) // not configured
	s.LogCommand(0.1, &state.Command{Speed: 2, Steering: 0.1})
	s.LogState(0.1, map[string]any{"speed": 2.0})
	s.Event(0.1, "mission execution started")
	require.NoError(t, s.Close())

	store, err := OpenStoreReadOnly(filepath.Join(dir, sessionDBName))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	t.Run("configured topic is recorded", func(t *testing.T) {
		records, err := store.Records(ctx, KindTopic, "camera")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 0.1, records[0].T)
	})

	t.Run("unconfigured streams are filtered out", func(t *testing.T) {
		records, err := store.Records(ctx, KindTopic, "lidar")
		require.NoError(t, err)
		assert.Empty(t, records)

		records, err = store.Records(ctx, KindBehavior, "route_planning")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("stage outputs and commands are recorded", func(t *testing.T) {
		records, err := store.Records(ctx, KindBehavior, "motion_planning")
		require.NoError(t, err)
		assert.Len(t, records, 1)

		records, err = store.Records(ctx, KindBehavior, vehicleStream)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("state snapshot and events are recorded", func(t *testing.T) {
		records, err := store.Records(ctx, KindState, "")
		require.NoError(t, err)
		assert.Len(t, records, 1)

		times, descriptions, err := store.Events(ctx)
		require.NoError(t, err)
		require.Len(t, descriptions, 1)
		assert.Equal(t, 0.1, times[0])
		assert.Equal(t, "mission execution started", descriptions[0])
	})
}

func TestSessionStateRateThrottle(t *testing.T) {
	s, dir := newTestSession(t, mission.LogSpec{StateRate: 10})

	// 10 Hz rate: only samples at least 0.1s apart survive.
	s.LogState(0.00, map[string]any{"n": 1})
	s.LogState(0.05, map[string]any{"n": 2})
	s.LogState(0.10, map[string]any{"n": 3})
	s.LogState(0.12, map[string]any{"n": 4})
	s.LogState(0.25, map[string]any{"n": 5})
	require.NoError(t, s.Close())

	store, err := OpenStoreReadOnly(filepath.Join(dir, sessionDBName))
	require.NoError(t, err)
	defer store.Close()

	records, err := store.Records(context.Background(), KindState, "")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 0.0, records[0].T)
	assert.Equal(t, 0.10, records[1].T)
	assert.Equal(t, 0.25, records[2].T)
}

func TestSessionZeroStateRateDisablesSnapshots(t *testing.T) {
	s, dir := newTestSession(t, mission.LogSpec{})
	s.LogState(0.1, map[string]any{"n": 1})
	require.NoError(t, s.Close())

	store, err := OpenStoreReadOnly(filepath.Join(dir, sessionDBName))
	require.NoError(t, err)
	defer store.Close()

	records, err := store.Records(context.Background(), KindState, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreOrdering(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	// Same timestamp twice: insertion order must be preserved.
	for i, payload := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		tm := 0.1
		if i == 2 {
			tm = 0.05
		}
		require.NoError(t, store.Append(ctx, Record{
			Kind: KindBehavior, Stream: "s", T: tm, Payload: []byte(payload),
		}))
	}

	records, err := store.Records(ctx, KindBehavior, "s")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, `{"n":3}`, string(records[0].Payload), "earlier timestamp sorts first")
	assert.Equal(t, `{"n":1}`, string(records[1].Payload))
	assert.Equal(t, `{"n":2}`, string(records[2].Payload), "ties keep insertion order")
}

func TestStoreStreams(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for _, stream := range []string{"b", "a", "b"} {
		require.NoError(t, store.Append(ctx, Record{
			Kind: KindTopic, Stream: stream, T: 0, Payload: []byte(`1`),
		}))
	}
	streams, err := store.Streams(ctx, KindTopic)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, streams)
}
