// Package recorder persists selected data streams during a mission run and
// replays them for reproducible offline debugging. Recording happens on a
// background goroutine behind a bounded queue so the control cadence is
// never blocked by storage I/O; when the queue is full the oldest buffered
// record is dropped with a warning, trading log completeness for loop
// timing.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avstack-io/helmsman/internal/mission"
	"github.com/avstack-io/helmsman/internal/types"
)

const (
	// sessionDBName is the record store inside a session directory.
	sessionDBName = "session.db"

	// sessionMetaName is the human-readable session metadata document.
	sessionMetaName = "meta.yaml"

	// queueDepth bounds the background writer queue.
	queueDepth = 1024

	// vehicleStream is the behavior stream for dispatched commands.
	vehicleStream = "vehicle_interface"
)

// Meta is the session metadata written to meta.yaml.
type Meta struct {
	SessionID  types.ID  `yaml:"session_id"`
	Mission    string    `yaml:"mission,omitempty"`
	Variants   []string  `yaml:"variants,omitempty"`
	StartedAt  time.Time `yaml:"started_at"`
	EndedAt    time.Time `yaml:"ended_at,omitempty"`
	ExitReason string    `yaml:"exit_reason,omitempty"`
}

// Session is a recording session: a log directory, the capture filters
// from the mission's log section, and the background writer that owns the
// store handle until Close.
type Session struct {
	id     types.ID
	dir    string
	store  *Store
	logger *slog.Logger

	topics     map[string]bool
	components map[string]bool
	stateRate  float64
	logVehicle bool

	queue chan queued
	wg    sync.WaitGroup

	mu         sync.Mutex
	meta       Meta
	lastStateT float64
	haveState  bool
	dropped    uint64
}

type queued struct {
	rec   Record
	event string
}

// SessionOptions carries run metadata into the session.
type SessionOptions struct {
	MissionName string
	Variants    []string
}

// NewSession creates the session directory under root (named by the log
// prefix or a timestamp), opens the record store and starts the background
// writer.
func NewSession(root string, logSpec mission.LogSpec, opts SessionOptions, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	name := logSpec.Prefix
	if name == "" {
		name = time.Now().Format("2006-01-02_15-04-05")
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapSession("create directory", err)
	}

	store, err := OpenStore(filepath.Join(dir, sessionDBName))
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:         types.NewID(),
		dir:        dir,
		store:      store,
		logger:     logger,
		topics:     toSet(logSpec.Topics),
		components: toSet(logSpec.Components),
		stateRate:  logSpec.StateRate,
		logVehicle: logSpec.VehicleInterface,
		queue:      make(chan queued, queueDepth),
	}
	s.meta = Meta{
		SessionID: s.id,
		Mission:   opts.MissionName,
		Variants:  opts.Variants,
		StartedAt: time.Now(),
	}
	if err := s.writeMeta(); err != nil {
		store.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.writeLoop()

	logger.Info("recording session started", "session_id", s.id, "dir", dir)
	return s, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Dir returns the session directory.
func (s *Session) Dir() string { return s.dir }

// ID returns the session identifier.
func (s *Session) ID() types.ID { return s.id }

// LogTopic records a raw topic sample if the topic is configured.
func (s *Session) LogTopic(topic string, t float64, value any) {
	if !s.topics[topic] {
		return
	}
	s.enqueue(KindTopic, topic, t, value)
}

// LogStage records a stage's outputs for this cycle if the component is
// configured in the behavior log.
func (s *Session) LogStage(stage string, t float64, outputs map[string]any) {
	if !s.components[stage] {
		return
	}
	s.enqueue(KindBehavior, stage, t, outputs)
}

// LogCommand records a dispatched vehicle command when interface logging
// is enabled.
func (s *Session) LogCommand(t float64, cmd any) {
	if !s.logVehicle {
		return
	}
	s.enqueue(KindBehavior, vehicleStream, t, cmd)
}

// LogState records a periodic full-state snapshot, throttled to the
// configured state rate.
func (s *Session) LogState(t float64, snapshot map[string]any) {
	if s.stateRate <= 0 {
		return
	}
	s.mu.Lock()
	if s.haveState && t-s.lastStateT < 1.0/s.stateRate {
		s.mu.Unlock()
		return
	}
	s.lastStateT = t
	s.haveState = true
	s.mu.Unlock()

	s.enqueue(KindState, "", t, snapshot)
}

// Event appends a description to the session event log.
func (s *Session) Event(t float64, description string) {
	s.push(queued{rec: Record{T: t}, event: description})
}

// SetExitReason records why the mission terminated; written to meta.yaml
// at Close.
func (s *Session) SetExitReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta.ExitReason == "" {
		s.meta.ExitReason = reason
	}
}

func (s *Session) enqueue(kind RecordKind, stream string, t float64, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to encode record, dropping",
			"kind", kind, "stream", stream, "error", err)
		return
	}
	s.push(queued{rec: Record{Kind: kind, Stream: stream, T: t, Payload: payload}})
}

// push enqueues without ever blocking the control thread: when the queue
// is full the oldest buffered record is discarded first.
func (s *Session) push(q queued) {
	select {
	case s.queue <- q:
		return
	default:
	}
	select {
	case old := <-s.queue:
		s.mu.Lock()
		s.dropped++
		n := s.dropped
		s.mu.Unlock()
		s.logger.Warn("recording queue full, dropping oldest record",
			"kind", old.rec.Kind, "stream", old.rec.Stream, "total_dropped", n)
	default:
	}
	select {
	case s.queue <- q:
	default:
	}
}

// writeLoop drains the queue into the store until Close.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	ctx := context.Background()
	for q := range s.queue {
		var err error
		if q.event != "" {
			err = s.store.AppendEvent(ctx, q.rec.T, q.event)
		} else {
			err = s.store.Append(ctx, q.rec)
		}
		if err != nil {
			s.logger.Warn("failed to persist record", "error", err)
		}
	}
}

// Close drains all buffered records, finalizes meta.yaml and releases the
// store. Guaranteed to run on both normal and fatal termination paths.
func (s *Session) Close() error {
	close(s.queue)
	s.wg.Wait()

	s.mu.Lock()
	s.meta.EndedAt = time.Now()
	s.mu.Unlock()

	metaErr := s.writeMeta()
	storeErr := s.store.Close()

	s.logger.Info("recording session closed", "session_id", s.id, "dir", s.dir)
	if metaErr != nil {
		return metaErr
	}
	return storeErr
}

func (s *Session) writeMeta() error {
	s.mu.Lock()
	meta := s.meta
	s.mu.Unlock()

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return wrapSession("encode metadata", err)
	}
	path := filepath.Join(s.dir, sessionMetaName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wrapSession("write metadata", err)
	}
	return nil
}

// ReadMeta loads the metadata document from a session directory.
func ReadMeta(dir string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, sessionMetaName))
	if err != nil {
		return nil, wrapSession("read metadata", err)
	}
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, wrapSession("decode metadata", fmt.Errorf("%s: %w", dir, err))
	}
	return &meta, nil
}
