package build

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/syssam/cppgen"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS targets (
	path TEXT PRIMARY KEY,
	good INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id      TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	saved   INTEGER NOT NULL
);`

// SQLiteStore keeps the snapshot in a SQLite database. Saves merge the
// newer last-known-good times into the table, so several checkouts can
// share one database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, cppgen.NewCacheError(path, "initialize snapshot database", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the targets table and the id of the latest run.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Version: snapshotVersion, Good: make(map[string]int64)}
	err := s.db.QueryRowContext(ctx, "SELECT id, version FROM runs ORDER BY saved DESC LIMIT 1").Scan(&snap.RunID, &snap.Version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, cppgen.NewCacheError("", "read runs", err)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT path, good FROM targets")
	if err != nil {
		return nil, cppgen.NewCacheError("", "read targets", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			path string
			good int64
		)
		if err := rows.Scan(&path, &good); err != nil {
			return nil, cppgen.NewCacheError("", "scan target", err)
		}
		snap.Good[path] = good
	}
	if err := rows.Err(); err != nil {
		return nil, cppgen.NewCacheError("", "read targets", err)
	}
	return snap, nil
}

// Save merges snap into the database in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO targets (path, good) VALUES (?, ?)
ON CONFLICT(path) DO UPDATE SET good = MAX(good, excluded.good)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot: %w", err)
	}
	defer stmt.Close()
	for path, good := range snap.Good {
		if _, err := stmt.ExecContext(ctx, path, good); err != nil {
			return fmt.Errorf("save target %s: %w", path, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO runs (id, version, saved) VALUES (?, ?, ?)",
		snap.RunID, snap.Version, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
