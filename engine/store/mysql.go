package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL audit backend for Record, adapted from the
// teacher's MySQLStore (graph/store/mysql.go): same schema-per-store-file
// and upsert-via-ON-DUPLICATE-KEY shape, narrowed to one table as in
// SQLiteStore.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL connection using dsn (see
// github.com/go-sql-driver/mysql's DSN format) and migrates its schema.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	if _, err := db.Exec(mysqlSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

const mysqlSchemaSQL = `
CREATE TABLE IF NOT EXISTS workflow_instances (
	instance_id      VARCHAR(64) PRIMARY KEY,
	workflow_id      VARCHAR(255) NOT NULL,
	user_id          VARCHAR(255) NOT NULL,
	current_node_id  VARCHAR(255) NOT NULL,
	node_history     TEXT NOT NULL,
	responses        TEXT NOT NULL,
	completed        TINYINT NOT NULL,
	waiting          TINYINT NOT NULL,
	complete_message TEXT NOT NULL,
	created_at       DATETIME(6) NOT NULL,
	updated_at       DATETIME(6) NOT NULL
);`

// Close releases the underlying database connection.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) Save(ctx context.Context, rec Record) error {
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
		ON DUPLICATE KEY UPDATE
			workflow_id=VALUES(workflow_id),
			user_id=VALUES(user_id),
			current_node_id=VALUES(current_node_id),
			node_history=VALUES(node_history),
			responses=VALUES(responses),
			completed=VALUES(completed),
			waiting=VALUES(waiting),
			complete_message=VALUES(complete_message),
			updated_at=VALUES(updated_at)
	`, rec.InstanceID, rec.WorkflowID, rec.UserID, rec.CurrentNodeID, string(history), string(responses),
		boolToInt(rec.Completed), boolToInt(rec.Waiting), rec.CompleteMessage, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	return nil
}

func (s *MySQLStore) Load(ctx context.Context, instanceID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT instance_id, workflow_id, user_id, current_node_id, node_history, responses, completed, waiting, complete_message, created_at, updated_at
		FROM workflow_instances WHERE instance_id = ?`, instanceID)
	rec, err := scanMySQLRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: load: %w", err)
	}
	return rec, nil
}

func (s *MySQLStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, workflow_id, user_id, current_node_id, node_history, responses, completed, waiting, complete_message, created_at, updated_at
		FROM workflow_instances`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanMySQLRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanMySQLRecord(row rowScanner) (Record, error) {
	var (
		rec                  Record
		history, responses   string
		completed, waiting   int
		createdAt, updatedAt time.Time
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
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return rec, nil
}
