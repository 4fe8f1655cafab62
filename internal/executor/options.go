package executor

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/avstack-io/helmsman/internal/recorder"
	"github.com/avstack-io/helmsman/internal/recovery"
)

// TopicSource is an optional sensor-bus boundary: it supplies the raw
// topic samples for each cycle's sensor frame. Hardware deployments plug
// their bus adapter in here; without one the frame carries only replayed
// topics.
type TopicSource interface {
	ReadTopics(ctx context.Context) (map[string]any, error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithTracer enables per-cycle and per-stage tracing spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loop) { l.tracer = tracer }
}

// WithRecovery sets the recovery manager supervising stage failures.
func WithRecovery(manager *recovery.Manager) Option {
	return func(l *Loop) { l.recovery = manager }
}

// WithSession attaches a recording session. The loop owns flushing it:
// the session is closed when Run returns, on both normal and fatal paths.
func WithSession(session *recorder.Session) Option {
	return func(l *Loop) { l.session = session }
}

// WithReplay attaches a replay session whose streams substitute live
// acquisition for the stages and topics it covers.
func WithReplay(replay *recorder.Replay) Option {
	return func(l *Loop) { l.replay = replay }
}

// WithTopicSource attaches a live sensor-bus topic source.
func WithTopicSource(source TopicSource) Option {
	return func(l *Loop) { l.topics = source }
}

// WithIOTimeout bounds the blocking ACQUIRE and DISPATCH operations. A
// timeout is treated as a stage-equivalent interface failure.
func WithIOTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.ioTimeout = d
		}
	}
}
