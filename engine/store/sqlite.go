package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite audit backend for Record, adapted
// from the teacher's SQLiteStore (graph/store/sqlite.go) — same
// WAL-mode-single-writer setup and upsert-on-save shape, narrowed from the
// teacher's step/checkpoint/outbox schema down to one table since our
// domain has no step-replay model, only instance snapshots.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path and
// migrates its schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workflow_instances (
	instance_id      TEXT PRIMARY KEY,
	workflow_id      TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	current_node_id  TEXT NOT NULL,
	node_history     TEXT NOT NULL,
	responses        TEXT NOT NULL,
	completed        INTEGER NOT NULL,
	waiting          INTEGER NOT NULL,
	complete_message TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);`

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	history, err := json.Marshal(rec.NodeHistory)
	if err != nil {
		return fmt.Errorf("store: marshal history: %w", err)
	}
	responses, err := json.Marshal(rec.Responses)
	if err != nil {
		return fmt.Errorf("store: marshal responses: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_instances (instance_id, workflow_id, user_id, current_node_id, node_history, responses, completed, waiting, complete_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			workflow_id=excluded.workflow_id,
			user_id=excluded.user_id,
			current_node_id=excluded.current_node_id,
			node_history=excluded.node_history,
			responses=excluded.responses,
			completed=excluded.completed,
			waiting=excluded.waiting,
			complete_message=excluded.complete_message,
			updated_at=excluded.updated_at
	`, rec.InstanceID, rec.WorkflowID, rec.UserID, rec.CurrentNodeID, string(history), string(responses),
		boolToInt(rec.Completed), boolToInt(rec.Waiting), rec.CompleteMessage,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, instanceID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT instance_id, workflow_id, user_id, current_node_id, node_history, responses, completed, waiting, complete_message, created_at, updated_at
		FROM workflow_instances WHERE instance_id = ?`, instanceID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: load: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, workflow_id, user_id, current_node_id, node_history, responses, completed, waiting, complete_message, created_at, updated_at
		FROM workflow_instances`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec                      Record
		history, responses       string
		completed, waiting       int
		createdAt, updatedAt     string
	)
	if err := row.Scan(&rec.InstanceID, &rec.WorkflowID, &rec.UserID, &rec.CurrentNodeID, &history, &responses,
		&completed, &waiting, &rec.CompleteMessage, &createdAt, &updatedAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(history), &rec.NodeHistory); err != nil {
		return Record{}, fmt.Errorf("unmarshal history: %w", err)
	}
	if err := json.Unmarshal([]byte(responses), &rec.Responses); err != nil {
		return Record{}, fmt.Errorf("unmarshal responses: %w", err)
	}
	rec.Completed = completed != 0
	rec.Waiting = waiting != 0
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
