package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dfryer1193/shift/api"
	"github.com/dfryer1193/shift/internal/data/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// runLockID keys the session advisory lock that serializes orchestrator
// runs against one database. Two concurrent runners would otherwise race on
// the pending-set calculation and double-apply.
const runLockID int64 = 874219042

// Executor applies and reverts migrations. The ledger status flip happens in
// the same transaction as the migration body, so a commit and its ledger
// record are atomic.
//
// Advisory locks are session-scoped, so the run lock lives on a dedicated
// connection held outside the pool for the whole run. A pooled connection
// could be reaped when idle or transparently reconnected, ending the session
// and dropping the lock mid-run; keeping the lock out of the pool also keeps
// a single-connection pool free for the migration transactions themselves.
type Executor struct {
	pool     *pgxpool.Pool
	lockConn *pgx.Conn
}

var _ repository.MigrationExecutor = (*Executor)(nil)

func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Apply executes the migration body and marks the ledger row applied, all in
// one transaction. On any error the transaction rolls back and the database
// is untouched.
func (e *Executor) Apply(ctx context.Context, file *api.MigrationFile) (time.Duration, error) {
	start := time.Now()

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for %s: %w", file.Version, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, file.SQL); err != nil {
		return 0, fmt.Errorf("migration %s failed: %w", file.Version, err)
	}

	elapsed := time.Since(start)
	markApplied := `
        UPDATE schema_migrations
        SET status = $2, applied_at = now(), duration_ms = $3, error = NULL
        WHERE version = $1`
	if _, err := tx.Exec(ctx, markApplied, file.Version, api.StatusApplied, elapsed.Milliseconds()); err != nil {
		return 0, fmt.Errorf("failed to mark %s applied: %w", file.Version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit migration %s: %w", file.Version, err)
	}

	return time.Since(start), nil
}

// Revert executes a rollback script and marks the ledger row rolled_back in
// the same transaction.
func (e *Executor) Revert(ctx context.Context, version, rollbackSQL string) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rollback transaction for %s: %w", version, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, rollbackSQL); err != nil {
		return fmt.Errorf("rollback of %s failed: %w", version, err)
	}

	markRolledBack := `
        UPDATE schema_migrations
        SET status = $2, rolled_back_at = now()
        WHERE version = $1`
	if _, err := tx.Exec(ctx, markRolledBack, version, api.StatusRolledBack); err != nil {
		return fmt.Errorf("failed to mark %s rolled back: %w", version, err)
	}

	return tx.Commit(ctx)
}

// AcquireRunLock takes the advisory run lock without blocking. False means
// another runner holds it. The lock's session is held until ReleaseRunLock.
func (e *Executor) AcquireRunLock(ctx context.Context) (bool, error) {
	conn, err := pgx.ConnectConfig(ctx, e.pool.Config().ConnConfig)
	if err != nil {
		return false, fmt.Errorf("failed to open run lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, runLockID).Scan(&acquired); err != nil {
		_ = conn.Close(ctx)
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		_ = conn.Close(ctx)
		return false, nil
	}

	e.lockConn = conn
	return true, nil
}

// ReleaseRunLock releases the advisory run lock and closes its session.
func (e *Executor) ReleaseRunLock(ctx context.Context) error {
	if e.lockConn == nil {
		return nil
	}
	defer func() {
		_ = e.lockConn.Close(ctx)
		e.lockConn = nil
	}()

	var released bool
	if err := e.lockConn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, runLockID).Scan(&released); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	if !released {
		log.Warn().Msg("advisory run lock was no longer held by this session at release")
	}
	return nil
}
