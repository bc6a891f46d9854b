package repository

import (
	"context"
	"time"

	"github.com/dfryer1193/shift/api"
)

// LedgerRepository is the source of truth for what has already been applied.
// Records are append/update-only; nothing is ever deleted.
type LedgerRepository interface {
	EnsureSchema(ctx context.Context) error
	Load(ctx context.Context) ([]*api.MigrationRecord, error)
	AppliedVersions(ctx context.Context) (map[string]bool, error)
	LatestApplied(ctx context.Context) (*api.MigrationRecord, error)
	RecordStart(ctx context.Context, version, name, hash string) error
	RecordFailure(ctx context.Context, version, errText string) error
}

// SchemaRepository answers read-only questions about the target schema.
type SchemaRepository interface {
	Ping(ctx context.Context) error
	TableCount(ctx context.Context) (int, error)
	TableExists(ctx context.Context, name string) (bool, error)
	AppliedCount(ctx context.Context) (int64, error)
}

// MigrationExecutor applies and reverts migrations transactionally. The
// ledger update happens inside the same transaction as the SQL body, so a
// crash can never leave a committed migration unrecorded.
type MigrationExecutor interface {
	Apply(ctx context.Context, file *api.MigrationFile) (time.Duration, error)
	Revert(ctx context.Context, version, rollbackSQL string) error
	AcquireRunLock(ctx context.Context) (bool, error)
	ReleaseRunLock(ctx context.Context) error
}
