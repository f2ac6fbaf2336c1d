/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists runtime profiles and the append-only cost run history. In
  production the same patterns apply to PostgreSQL with minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on cost_runs
  - No DELETE statements on cost_runs
  - Re-costing a batch inserts a new run

KEY TABLES:
  profiles:   Runtime profile definitions (versioned)
  cost_runs:  Input document, result document and headline numbers per run

INDEXES:
  - idx_cost_runs_batch:   Batch history (GET /api/cost-runs?batch_id=)
  - idx_cost_runs_created: Newest-first listing

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  st, err := sqlite.New("./data/joint-cost.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/store.go: Interface definition
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/joint-cost-engine/store"
)

// Fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Runtime profiles (versioned)
	CREATE TABLE IF NOT EXISTS profiles (
		name TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Cost runs (append-only)
	CREATE TABLE IF NOT EXISTS cost_runs (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		profile TEXT NOT NULL,
		k_factor TEXT NOT NULL,
		warning_count INTEGER NOT NULL DEFAULT 0,
		input_json TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cost_runs_batch
		ON cost_runs(batch_id, created_at);

	CREATE INDEX IF NOT EXISTS idx_cost_runs_created
		ON cost_runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROFILE STORE
// =============================================================================

// SaveProfile saves a profile record.
func (s *Store) SaveProfile(ctx context.Context, p store.ProfileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO profiles (name, config_json, version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			config_json = excluded.config_json,
			version = profiles.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, query, p.Name, p.ConfigJSON, now, now)
	return err
}

// GetProfile retrieves a profile by name.
func (s *Store) GetProfile(ctx context.Context, name string) (*store.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p store.ProfileRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT name, config_json, version, created_at, updated_at FROM profiles WHERE name = ?",
		name,
	).Scan(&p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	p.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &p, nil
}

// ListProfiles returns all profiles.
func (s *Store) ListProfiles(ctx context.Context) ([]store.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, config_json, version, created_at, updated_at FROM profiles ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []store.ProfileRecord
	for rows.Next() {
		var p store.ProfileRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		p.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile.
func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE name = ?", name)
	return err
}

// =============================================================================
// COST RUN STORE
// =============================================================================

// SaveRun appends a cost run.
func (s *Store) SaveRun(ctx context.Context, r store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO cost_runs (id, batch_id, profile, k_factor, warning_count, input_json, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.BatchID, r.Profile, r.KFactor.String(), r.WarningCount,
		r.InputJSON, r.ResultJSON, r.CreatedAt.UTC().Format(timeLayout),
	)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return store.ErrDuplicateRun
	}
	return err
}

const runColumns = "id, batch_id, profile, k_factor, warning_count, input_json, result_json, created_at"

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM cost_runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, f store.RunFilter) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + runColumns + " FROM cost_runs"
	var args []any
	if f.BatchID != "" {
		query += " WHERE batch_id = ?"
		args = append(args, f.BatchID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.RunRecord, error) {
	var r store.RunRecord
	var kFactor, createdAt string
	if err := row.Scan(&r.ID, &r.BatchID, &r.Profile, &kFactor, &r.WarningCount,
		&r.InputJSON, &r.ResultJSON, &createdAt); err != nil {
		return store.RunRecord{}, err
	}

	k, err := decimal.NewFromString(kFactor)
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("run %s: bad k_factor %q: %w", r.ID, kFactor, err)
	}
	r.KFactor = k
	r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return r, nil
}
