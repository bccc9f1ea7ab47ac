package bus

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/runner"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStoreConfig configures the SQLite event store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string.
	DSN string

	// RetentionAge deletes events older than this duration (0 = no age pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many events per run (0 = no count pruning).
	RetentionCount int

	// PruneInterval is how often to run pruning (default 1 hour).
	PruneInterval time.Duration
}

// SQLiteEventStore persists scenario run events to a SQLite database.
// It satisfies the EventStore interface and supports WAL mode for
// concurrent read access and a background pruner goroutine.
type SQLiteEventStore struct {
	db   *sql.DB
	cfg  SQLiteStoreConfig
	stop chan struct{}
	done chan struct{}
}

// NewSQLiteEventStore opens (or creates) a SQLite event store.
func NewSQLiteEventStore(cfg SQLiteStoreConfig) (*SQLiteEventStore, error) {
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: set WAL mode: %w", err)
	}

	// Create schema.
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	s := &SQLiteEventStore{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	// Start background pruner if any retention is configured.
	if cfg.RetentionAge > 0 || cfg.RetentionCount > 0 {
		go s.pruneLoop()
	} else {
		close(s.done)
	}

	return s, nil
}

// Append stores an event in the database.
func (s *SQLiteEventStore) Append(ctx context.Context, event runner.Event) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, seq, kind, scenario_id, scenario_name, uri, step_text, phase, time, elapsed, payload, trace_id, span_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID,
		event.Seq,
		string(event.Kind),
		event.ScenarioID,
		event.ScenarioName,
		event.URI,
		event.StepText,
		string(event.Phase),
		event.Time.Format(time.RFC3339Nano),
		int64(event.Elapsed),
		string(payloadJSON),
		event.TraceID,
		event.SpanID,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: append: %w", err)
	}
	return nil
}

// List returns events for a run, optionally filtered by afterSeq and limit.
func (s *SQLiteEventStore) List(ctx context.Context, runID string, afterSeq uint64, limit int) ([]runner.Event, error) {
	query := `SELECT run_id, seq, kind, scenario_id, scenario_name, uri, step_text, phase, time, elapsed, payload, trace_id, span_id
	          FROM events WHERE run_id = ? AND seq > ? ORDER BY seq ASC`
	args := []any{runID, afterSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()

	var events []runner.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: list rows: %w", err)
	}
	return events, nil
}

// LatestSeq returns the highest Seq for a run (0 if no events).
func (s *SQLiteEventStore) LatestSeq(ctx context.Context, runID string) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM events WHERE run_id = ?`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: latest seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// Close stops the pruner and closes the database.
func (s *SQLiteEventStore) Close() error {
	select {
	case <-s.stop:
		// already stopped
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

// pruneLoop periodically applies the configured retention policies.
func (s *SQLiteEventStore) pruneLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

// prune deletes events past the configured age or per-run count.
func (s *SQLiteEventStore) prune() {
	if s.cfg.RetentionAge > 0 {
		cutoff := time.Now().Add(-s.cfg.RetentionAge).Format(time.RFC3339Nano)
		_, _ = s.db.Exec(`DELETE FROM events WHERE time < ?`, cutoff)
	}
	if s.cfg.RetentionCount > 0 {
		_, _ = s.db.Exec(
			`DELETE FROM events WHERE id IN (
			   SELECT e.id FROM events e
			   WHERE (SELECT COUNT(*) FROM events newer
			          WHERE newer.run_id = e.run_id AND newer.seq > e.seq) >= ?
			 )`, s.cfg.RetentionCount)
	}
}

func scanEvent(rows *sql.Rows) (runner.Event, error) {
	var (
		event       runner.Event
		kind        string
		phase       string
		timeStr     string
		elapsed     int64
		payloadJSON string
	)
	err := rows.Scan(
		&event.RunID,
		&event.Seq,
		&kind,
		&event.ScenarioID,
		&event.ScenarioName,
		&event.URI,
		&event.StepText,
		&phase,
		&timeStr,
		&elapsed,
		&payloadJSON,
		&event.TraceID,
		&event.SpanID,
	)
	if err != nil {
		return event, fmt.Errorf("sqlitestore: scan: %w", err)
	}

	event.Kind = runner.EventKind(kind)
	event.Phase = core.HookPhase(phase)
	event.Elapsed = time.Duration(elapsed)

	t, err := time.Parse(time.RFC3339Nano, timeStr)
	if err != nil {
		return event, fmt.Errorf("sqlitestore: parse time: %w", err)
	}
	event.Time = t

	if err := json.Unmarshal([]byte(payloadJSON), &event.Payload); err != nil {
		return event, fmt.Errorf("sqlitestore: unmarshal payload: %w", err)
	}
	return event, nil
}

// Compile-time interface check.
var _ EventStore = (*SQLiteEventStore)(nil)
