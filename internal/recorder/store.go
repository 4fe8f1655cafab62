package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// RecordKind partitions the session store into its three logs.
type RecordKind string

const (
	// KindTopic is a raw data-topic sample.
	KindTopic RecordKind = "topic"

	// KindBehavior is a per-stage input/output record.
	KindBehavior RecordKind = "behavior"

	// KindState is a periodic full-state snapshot.
	KindState RecordKind = "state"
)

// Record is one timestamped entry in a session log. T is vehicle time.
type Record struct {
	Kind    RecordKind
	Stream  string
	T       float64
	Payload json.RawMessage
}

// Store is the per-session SQLite record store. One store backs both the
// recording and replay sides; replay opens it read-only.
type Store struct {
	conn *sql.DB
	path string
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS records (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	kind    TEXT NOT NULL,
	stream  TEXT NOT NULL,
	t       REAL NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_stream ON records(kind, stream, t);

CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	t           REAL NOT NULL,
	description TEXT NOT NULL
);
`

// OpenStore opens (creating if needed) the session store at path with WAL
// journaling and a busy timeout for concurrent reader/writer access.
func OpenStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", path, int((5 * time.Second).Milliseconds()))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrapSession("open", err)
	}
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, wrapSession("open", err)
	}
	if _, err := conn.ExecContext(ctx, storeSchema); err != nil {
		conn.Close()
		return nil, wrapSession("migrate", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// OpenStoreReadOnly opens an existing session store without write access.
func OpenStoreReadOnly(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", path, int((5 * time.Second).Milliseconds()))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrapSession("open", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, wrapSession("open", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Append inserts one record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO records (kind, stream, t, payload) VALUES (?, ?, ?, ?)`,
		string(rec.Kind), rec.Stream, rec.T, string(rec.Payload))
	if err != nil {
		return wrapSession("append", err)
	}
	return nil
}

// AppendEvent inserts one event-log entry.
func (s *Store) AppendEvent(ctx context.Context, t float64, description string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO events (t, description) VALUES (?, ?)`, t, description)
	if err != nil {
		return wrapSession("append event", err)
	}
	return nil
}

// Records returns all records for a stream in timestamp order. Insertion
// order breaks timestamp ties, preserving the recorded sequence exactly.
func (s *Store) Records(ctx context.Context, kind RecordKind, stream string) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT kind, stream, t, payload FROM records WHERE kind = ? AND stream = ? ORDER BY t, id`,
		string(kind), stream)
	if err != nil {
		return nil, wrapSession("query", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var kindStr, payload string
		if err := rows.Scan(&kindStr, &rec.Stream, &rec.T, &payload); err != nil {
			return nil, wrapSession("scan", err)
		}
		rec.Kind = RecordKind(kindStr)
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Streams lists the distinct stream names recorded under a kind.
func (s *Store) Streams(ctx context.Context, kind RecordKind) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT DISTINCT stream FROM records WHERE kind = ? ORDER BY stream`, string(kind))
	if err != nil {
		return nil, wrapSession("query", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var stream string
		if err := rows.Scan(&stream); err != nil {
			return nil, wrapSession("scan", err)
		}
		out = append(out, stream)
	}
	return out, rows.Err()
}

// Events returns the session event log in time order.
func (s *Store) Events(ctx context.Context) (times []float64, descriptions []string, err error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT t, description FROM events ORDER BY t, id`)
	if err != nil {
		return nil, nil, wrapSession("query", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t float64
		var desc string
		if err := rows.Scan(&t, &desc); err != nil {
			return nil, nil, wrapSession("scan", err)
		}
		times = append(times, t)
		descriptions = append(descriptions, desc)
	}
	return times, descriptions, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}
