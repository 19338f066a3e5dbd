package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bidio/internal/models"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// schema stores every namespace in one table of JSON documents.
const schema = `
CREATE TABLE IF NOT EXISTS bids (
    namespace TEXT NOT NULL,
    id INTEGER NOT NULL,
    doc TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, id)
);
`

// OpenSQLite opens the document database at path, creating parent
// directories and the schema as needed.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	// One connection serializes transactions, which is what makes Modify atomic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}
	return db, nil
}

// SQLiteBackend is the document-database Backend: one row per bid, the
// document kept as JSON text.
type SQLiteBackend struct {
	db        *sql.DB
	namespace string
}

// NewSQLiteBackend binds namespace inside db.
func NewSQLiteBackend(db *sql.DB, namespace string) *SQLiteBackend {
	return &SQLiteBackend{db: db, namespace: namespace}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteBackend) read(ctx context.Context, q queryer, id int64) (models.Doc, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		"SELECT doc FROM bids WHERE namespace = ? AND id = ?", s.namespace, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc models.Doc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode bid %d: %w", id, err)
	}
	return doc, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, id int64) (models.Doc, error) {
	return s.read(ctx, s.db, id)
}

func (s *SQLiteBackend) Modify(ctx context.Context, id int64, fn ModifyFunc) (models.Doc, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.read(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil || next == nil {
		return nil, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode bid %d: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bids (namespace, id, doc, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		s.namespace, id, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("save bid %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bid %d: %w", id, err)
	}
	return next, nil
}

func (s *SQLiteBackend) List(ctx context.Context) ([]models.Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc FROM bids WHERE namespace = ? ORDER BY id", s.namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Doc
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc models.Doc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode bid: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteBackend) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM bids WHERE namespace = ? AND id = ?", s.namespace, id)
	return err
}

func (s *SQLiteBackend) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM bids WHERE namespace = ?", s.namespace)
	return err
}
