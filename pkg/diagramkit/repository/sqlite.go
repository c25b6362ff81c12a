package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists diagrams to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	opts   options
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a diagram database.
// The path should be a file path (e.g., "./diagrams.db") or ":memory:" for testing.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS diagrams (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			modified TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, id diagramkit.DiagramID, d diagramkit.Diagram) error {
	data, name, err := s.opts.encode(id, d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagrams (id, name, modified, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			modified = excluded.modified,
			data = excluded.data
	`, string(id), name, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("save diagram: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id diagramkit.DiagramID) (diagramkit.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return diagramkit.Diagram{}, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM diagrams WHERE id = ?
	`, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return diagramkit.Diagram{}, ErrNotFound
	}
	if err != nil {
		return diagramkit.Diagram{}, fmt.Errorf("load diagram: %w", err)
	}
	return s.opts.decode(id, data)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, modified, LENGTH(data)
		FROM diagrams
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var (
			info     Info
			id       string
			modified string
		)
		if err := rows.Scan(&id, &info.Name, &modified, &info.Size); err != nil {
			return nil, fmt.Errorf("scan diagram info: %w", err)
		}
		info.ID = diagramkit.DiagramID(id)
		info.Modified, _ = time.Parse(time.RFC3339Nano, modified)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagrams: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id diagramkit.DiagramID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM diagrams WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete diagram: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
