package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore persists records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS agent_outputs (
		request_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		kind       TEXT NOT NULL,
		payload    TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (request_id, agent_name)
	);

	CREATE INDEX IF NOT EXISTS idx_outputs_request ON agent_outputs(request_id);
`

// NewSQLiteStore opens (and if necessary creates) the database at path,
// creating parent directories as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, goerr.Wrap(err, "failed to create data dir", goerr.V("dir", dir))
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate schema")
	}

	return &SQLiteStore{db: db}, nil
}

func (x *SQLiteStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return goerr.New("record must not be nil")
	}

	_, err := x.db.ExecContext(ctx, `
		INSERT INTO agent_outputs (request_id, agent_name, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (request_id, agent_name) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, record.RequestID, record.AgentName, record.Kind, string(record.Payload),
		record.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return goerr.Wrap(err, "failed to save record",
			goerr.V("request_id", record.RequestID),
			goerr.V("agent_name", record.AgentName))
	}
	return nil
}

func (x *SQLiteStore) GetByRequestID(ctx context.Context, requestID string) ([]*Record, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT request_id, agent_name, kind, payload, created_at
		FROM agent_outputs
		WHERE request_id = ?
		ORDER BY agent_name
	`, requestID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query records", goerr.V("request_id", requestID))
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var record Record
		var payload, createdAt string
		if err := rows.Scan(&record.RequestID, &record.AgentName, &record.Kind, &payload, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan record")
		}
		record.Payload = []byte(payload)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			record.CreatedAt = ts
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records")
	}
	return records, nil
}

func (x *SQLiteStore) Close() error {
	return x.db.Close()
}
