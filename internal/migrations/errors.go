package migrations

import "errors"

var (
	// ErrValidationRejected means a structural pre-flight problem (missing
	// file, unreachable schema) stopped the run before any mutation.
	ErrValidationRejected = errors.New("validation rejected migration run")

	// ErrMigrationFailed means one migration's transaction rolled back and
	// the run halted. Earlier migrations in the run stay committed.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrRunLocked means another orchestrator holds the advisory run lock.
	ErrRunLocked = errors.New("another migration run is in progress")

	// ErrUnhealthy means migrations applied but the post-run health check
	// found problems.
	ErrUnhealthy = errors.New("post-migration health check failed")

	// ErrRollbackUnavailable means the most recent applied migration has no
	// paired rollback script; nothing was mutated.
	ErrRollbackUnavailable = errors.New("no rollback script for most recent migration")

	// ErrNothingToRollback means the ledger holds no applied migration.
	ErrNothingToRollback = errors.New("no applied migration to roll back")

	// ErrRollbackDisabled means rollback is switched off by configuration.
	ErrRollbackDisabled = errors.New("rollback is disabled by configuration")

	// ErrApprovalRequired means the environment requires explicit approval
	// before a mutating run.
	ErrApprovalRequired = errors.New("this environment requires explicit approval to run migrations")
)
