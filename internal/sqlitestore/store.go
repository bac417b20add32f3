// Package sqlitestore persists the result registry in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/bootforge/internal/resultstore"
	_ "modernc.org/sqlite"
)

// ErrLocked is returned by Open when another process holds the registry.
var ErrLocked = errors.New("registry is in use by another process")

const schema = `
CREATE TABLE IF NOT EXISTS results (
	target TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL DEFAULT '',
	dep_fingerprints JSON NOT NULL DEFAULT '{}',
	discovered JSON,
	built_at INTEGER NOT NULL
);
`

// Store is a resultstore.Store backed by a single SQLite file. The file is
// opened in exclusive locking mode, so one invocation owns it at a time.
type Store struct {
	db   *sql.DB
	path string
}

var _ resultstore.Store = (*Store)(nil)

// Open opens or creates the registry at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The exclusive lock belongs to a connection; keep exactly one.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 2000",
		"PRAGMA locking_mode = EXCLUSIVE",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, classify(path, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, classify(path, fmt.Errorf("create schema: %w", err))
	}
	return &Store{db: db, path: path}, nil
}

func classify(path string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not a database"), strings.Contains(msg, "malformed"):
		return fmt.Errorf("%s: %w: %v", path, resultstore.ErrRegistryCorrupt, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return fmt.Errorf("%s: %w", path, ErrLocked)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(ctx context.Context, target string) (*resultstore.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT target, fingerprint, dep_fingerprints, discovered, built_at FROM results WHERE target = ?`, target)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, e *resultstore.Entry) error {
	if e == nil || e.Target == "" {
		return errors.New("entry without target")
	}
	deps := e.DepFingerprints
	if deps == nil {
		deps = map[string]string{}
	}
	depJSON, err := json.Marshal(deps)
	if err != nil {
		return fmt.Errorf("encode dependency fingerprints of %s: %w", e.Target, err)
	}
	var discovered any
	if e.Discovered != nil {
		b, err := json.Marshal(e.Discovered)
		if err != nil {
			return fmt.Errorf("encode discovered dependencies of %s: %w", e.Target, err)
		}
		discovered = string(b)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (target, fingerprint, dep_fingerprints, discovered, built_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(target) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			dep_fingerprints = excluded.dep_fingerprints,
			discovered = excluded.discovered,
			built_at = excluded.built_at`,
		e.Target, e.Fingerprint, string(depJSON), discovered, e.BuiltAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store result of %s: %w", e.Target, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*resultstore.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target, fingerprint, dep_fingerprints, discovered, built_at FROM results ORDER BY target`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*resultstore.Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*resultstore.Entry, error) {
	var (
		e          resultstore.Entry
		depJSON    string
		discovered sql.NullString
		builtAt    int64
	)
	if err := row.Scan(&e.Target, &e.Fingerprint, &depJSON, &discovered, &builtAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(depJSON), &e.DepFingerprints); err != nil {
		return nil, fmt.Errorf("%s: dependency fingerprints: %w: %v", e.Target, resultstore.ErrRegistryCorrupt, err)
	}
	if discovered.Valid {
		if err := json.Unmarshal([]byte(discovered.String), &e.Discovered); err != nil {
			return nil, fmt.Errorf("%s: discovered dependencies: %w: %v", e.Target, resultstore.ErrRegistryCorrupt, err)
		}
		if e.Discovered == nil {
			e.Discovered = []string{}
		}
	}
	e.BuiltAt = time.Unix(0, builtAt)
	return &e, nil
}
