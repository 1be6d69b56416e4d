package incidents

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-backed incident store
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) an incident database under
// dataPath.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "incidents.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		incident_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		details TEXT NOT NULL,
		severity TEXT NOT NULL,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_ts ON incidents(timestamp);
	CREATE INDEX IF NOT EXISTS idx_incidents_type ON incidents(incident_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append stores an incident, assigning a fresh ID if the incident has none.
func (s *SQLiteStore) Append(ctx context.Context, inc *Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, incident_type, resource_id, timestamp, details, severity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inc.ID, string(inc.Type), inc.ResourceID, inc.Timestamp.UTC().UnixNano(),
		inc.Details, string(inc.Severity),
	)
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	return nil
}

// ListAll returns every stored incident, newest first.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_type, resource_id, timestamp, details, severity
		FROM incidents
		ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var result []*Incident
	for rows.Next() {
		var inc Incident
		var incType, severity string
		var ts int64
		if err := rows.Scan(&inc.ID, &incType, &inc.ResourceID, &ts, &inc.Details, &severity); err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		inc.Type = Type(incType)
		inc.Severity = Severity(severity)
		inc.Timestamp = time.Unix(0, ts).UTC()
		result = append(result, &inc)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return result, nil
}

// Cleanup deletes incidents older than the retention window.
func (s *SQLiteStore) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention).UTC().UnixNano()
	_, err := s.db.ExecContext(ctx, `DELETE FROM incidents WHERE timestamp < ?`, cutoff)
	if err != nil {
		return &StoreError{Op: "cleanup", Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
