package observability

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/avstack-io/helmsman/internal/mission"
	"github.com/avstack-io/helmsman/internal/types"
)

// Helmsman-specific attribute keys for observability.
const (
	// HelmsmanMissionID is the unique identifier for the mission run.
	HelmsmanMissionID = "helmsman.mission.id"

	// HelmsmanMissionName is the name of the mission.
	HelmsmanMissionName = "helmsman.mission.name"

	// HelmsmanMissionMode is the resolved execution mode.
	HelmsmanMissionMode = "helmsman.mission.mode"

	// HelmsmanStageName is the name of the computation graph stage.
	HelmsmanStageName = "helmsman.stage.name"

	// HelmsmanCycleSeq is the cycle sequence number.
	HelmsmanCycleSeq = "helmsman.cycle.seq"
)

// Span name constants for runtime operations.
const (
	// SpanCycle represents one execution cycle.
	SpanCycle = "executor.cycle"

	// SpanStage represents one stage update within a cycle.
	SpanStage = "executor.stage"
)

// MissionAttributes creates OpenTelemetry attributes for a mission run.
func MissionAttributes(runID types.ID, spec *mission.Spec) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HelmsmanMissionID, runID.String()),
		attribute.String(HelmsmanMissionName, spec.Name),
		attribute.String(HelmsmanMissionMode, string(spec.Mode)),
	}
}
