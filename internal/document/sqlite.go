package document

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/dshills/reqtrace/internal/schema"
)

// sqliteSchema is executed on every open; IF NOT EXISTS keeps it idempotent.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id    TEXT NOT NULL,
    document_type TEXT NOT NULL,
    content       TEXT NOT NULL,
    version       TEXT NOT NULL DEFAULT '',
    source        TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id, id);
`

// SQLiteStore keeps project documents in a local SQLite database in WAL
// mode. Reads may run concurrently with each other and with writers.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("document store: open database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("document store: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("document store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutDocument appends d to projectID. Documents are returned in insertion order.
func (s *SQLiteStore) PutDocument(ctx context.Context, projectID string, d Document) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	return insertDocument(ctx, s.db, projectID, d)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDocument(ctx context.Context, db execer, projectID string, d Document) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `
		INSERT INTO documents (project_id, document_type, content, version, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, q, projectID, string(d.DocumentType), d.Content, d.Version, d.Source,
		createdAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("document store: insert %s document for %s: %w", d.DocumentType, projectID, err)
	}
	return nil
}

// ReplaceProject atomically replaces every document of projectID with docs.
func (s *SQLiteStore) ReplaceProject(ctx context.Context, projectID string, docs []Document) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("document store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("document store: clear %s: %w", projectID, err)
	}
	for _, d := range docs {
		if err := insertDocument(ctx, tx, projectID, d); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("document store: commit: %w", err)
	}
	return nil
}

// GetProjectDocuments returns projectID's documents in insertion order.
// A project without documents is reported as ErrProjectNotFound.
func (s *SQLiteStore) GetProjectDocuments(ctx context.Context, projectID string) ([]Document, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	const q = `
		SELECT document_type, content, version, source, created_at
		FROM documents WHERE project_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("document store: query %s: %w", projectID, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var dt, ts string
		if err := rows.Scan(&dt, &d.Content, &d.Version, &d.Source, &ts); err != nil {
			return nil, fmt.Errorf("document store: scan document: %w", err)
		}
		createdAt, err := parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("document store: %w", err)
		}
		d.DocumentType, _ = schema.ParseDocumentType(dt)
		d.CreatedAt = createdAt
		d.Hash = Hash(d.Content)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("document store: iterate documents: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	return out, nil
}

// ListProjects returns the distinct project IDs in the store, sorted.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT project_id FROM documents ORDER BY project_id")
	if err != nil {
		return nil, fmt.Errorf("document store: list projects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("document store: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// timestampFormats lists the layouts created_at may be stored in.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.DateTime,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
