package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfryer1193/shift/api"
	"github.com/dfryer1193/shift/internal/data/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerTable is the self-bootstrapped metadata table. The ledger must be
// able to describe itself before any user migration runs.
const ledgerDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	hash TEXT NOT NULL,
	applied_at TIMESTAMPTZ,
	rolled_back_at TIMESTAMPTZ,
	duration_ms BIGINT,
	status TEXT NOT NULL,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const recordColumns = `version, name, hash, status, applied_at, rolled_back_at, duration_ms, error, created_at`

type LedgerRepository struct {
	pool *pgxpool.Pool
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// EnsureSchema creates the ledger table if absent.
func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Load returns every ledger row, most recently applied first, nulls last,
// then most recently created.
func (r *LedgerRepository) Load(ctx context.Context) ([]*api.MigrationRecord, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM schema_migrations
        ORDER BY applied_at DESC NULLS LAST, created_at DESC`, recordColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load migration records: %w", err)
	}
	defer rows.Close()

	var records []*api.MigrationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// AppliedVersions returns the set of versions with status applied. The
// pending set is every file version not present here.
func (r *LedgerRepository) AppliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT version FROM schema_migrations WHERE status = $1`, api.StatusApplied)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// LatestApplied returns the most recently applied record, or nil if none.
func (r *LedgerRepository) LatestApplied(ctx context.Context) (*api.MigrationRecord, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM schema_migrations
        WHERE status = $1
        ORDER BY applied_at DESC
        LIMIT 1`, recordColumns)

	row := r.pool.QueryRow(ctx, query, api.StatusApplied)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// RecordStart upserts a pending row immediately before the transaction
// begins. A crash mid-migration leaves this row behind as a deliberate
// signal that the last run was interrupted.
func (r *LedgerRepository) RecordStart(ctx context.Context, version, name, hash string) error {
	query := `
        INSERT INTO schema_migrations (version, name, hash, status)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (version) DO UPDATE
        SET name = EXCLUDED.name, hash = EXCLUDED.hash, status = EXCLUDED.status, error = NULL`

	if _, err := r.pool.Exec(ctx, query, version, name, hash, api.StatusPending); err != nil {
		return fmt.Errorf("failed to record migration start for %s: %w", version, err)
	}
	return nil
}

// RecordFailure marks a version failed with the error text. The migration
// transaction has already rolled back by the time this runs.
func (r *LedgerRepository) RecordFailure(ctx context.Context, version, errText string) error {
	query := `
        UPDATE schema_migrations
        SET status = $2, error = $3
        WHERE version = $1`

	if _, err := r.pool.Exec(ctx, query, version, api.StatusFailed, errText); err != nil {
		return fmt.Errorf("failed to record migration failure for %s: %w", version, err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*api.MigrationRecord, error) {
	record := &api.MigrationRecord{}
	err := row.Scan(
		&record.Version,
		&record.Name,
		&record.Hash,
		&record.Status,
		&record.AppliedAt,
		&record.RolledBackAt,
		&record.DurationMs,
		&record.Error,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan migration record: %w", err)
	}
	return record, nil
}
