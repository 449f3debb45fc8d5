// Package db persists the document-to-vector bridge table: the
// relational record of which vector rows in a workspace collection
// belong to which source document, so "remove document X" can translate
// into a targeted delete instead of a namespace-wide scan.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB holding the document_vectors bridge table.
type DB struct {
	*sql.DB
	mu   sync.RWMutex
	path string
}

// Open creates or opens a SQLite database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("db: creating directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db: opening: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: pinging: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: migrating: %w", err)
	}
	return d, nil
}

// OpenMemory opens an in-memory database, useful for tests and single-run
// CLI invocations.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db: opening in-memory: %w", err)
	}
	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: migrating: %w", err)
	}
	return d, nil
}

func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS document_vectors (
    doc_id      TEXT NOT NULL,
    vector_id   TEXT NOT NULL,
    workspace   TEXT NOT NULL,
    source_path TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY(doc_id, vector_id)
);

CREATE INDEX IF NOT EXISTS idx_document_vectors_doc ON document_vectors(doc_id);
CREATE INDEX IF NOT EXISTS idx_document_vectors_workspace ON document_vectors(workspace);
CREATE INDEX IF NOT EXISTS idx_document_vectors_source ON document_vectors(source_path);
`

// VectorRow is one document_vectors row.
type VectorRow struct {
	DocID      string
	VectorID   string
	Workspace  string
	SourcePath string
	CreatedAt  time.Time
}

// InsertVectorRows bridges docID to each of vectorIDs within workspace.
func (d *DB) InsertVectorRows(ctx context.Context, workspace, docID, sourcePath string, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO document_vectors (doc_id, vector_id, workspace, source_path) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("db: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, vectorID := range vectorIDs {
		if _, err := stmt.ExecContext(ctx, docID, vectorID, workspace, sourcePath); err != nil {
			return fmt.Errorf("db: insert vector row: %w", err)
		}
	}
	return tx.Commit()
}

// VectorIDsForDocument returns every vector id bridged to docID.
func (d *DB) VectorIDsForDocument(ctx context.Context, docID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.QueryContext(ctx, `SELECT vector_id FROM document_vectors WHERE doc_id = ?`, docID)
	if err != nil {
		return nil, fmt.Errorf("db: query vector ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db: scan vector id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes every bridge row for docID within workspace.
func (d *DB) DeleteDocument(ctx context.Context, workspace, docID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.ExecContext(ctx, `DELETE FROM document_vectors WHERE workspace = ? AND doc_id = ?`, workspace, docID)
	if err != nil {
		return fmt.Errorf("db: delete document: %w", err)
	}
	return nil
}
