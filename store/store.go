/*
Package store defines persistence for profiles and cost runs.

PURPOSE:
  The engine is pure: it never touches storage. The API persists two
  things around it:
  - Profiles added at runtime (preset profiles live in code)
  - Cost runs: the exact input document and the result of every run

RUN RECORDS ARE APPEND-ONLY:
  A run is never updated. Re-costing a batch creates a new run, so the
  history of a batch shows every version of its numbers. The stored input
  document replays to the same result.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via mattn/go-sqlite3
  - store/memory: in-memory, for tests and demos

SEE ALSO:
  - factory/run.go: the input documents stored in RunRecord.InputJSON
  - api/handlers.go: the only writer
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDuplicateRun is returned when a run ID is saved twice.
var ErrDuplicateRun = errors.New("duplicate cost run id")

// ProfileRecord is a stored profile with its JSON config.
type ProfileRecord struct {
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RunRecord is one persisted engine run.
type RunRecord struct {
	ID           string
	BatchID      string
	Profile      string
	KFactor      decimal.Decimal // zero for whole-bird runs
	WarningCount int
	InputJSON    string
	ResultJSON   string
	CreatedAt    time.Time
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	BatchID string
	Limit   int
}

// Store persists profiles and runs. Getters return nil, nil when the record
// does not exist.
type Store interface {
	// SaveProfile inserts or replaces a profile, bumping its version.
	SaveProfile(ctx context.Context, p ProfileRecord) error
	GetProfile(ctx context.Context, name string) (*ProfileRecord, error)
	ListProfiles(ctx context.Context) ([]ProfileRecord, error)
	DeleteProfile(ctx context.Context, name string) error

	// SaveRun appends a run. Returns ErrDuplicateRun if the ID exists.
	SaveRun(ctx context.Context, r RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, f RunFilter) ([]RunRecord, error)

	Close() error
}
