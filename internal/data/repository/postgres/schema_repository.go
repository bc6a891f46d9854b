package postgres

import (
	"context"
	"fmt"

	"github.com/dfryer1193/shift/api"
	"github.com/dfryer1193/shift/internal/data/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaRepository answers read-only questions about the target schema.
// All probes share the pool but nothing else, so they are safe to run
// concurrently from the health checker.
type SchemaRepository struct {
	pool *pgxpool.Pool
}

var _ repository.SchemaRepository = (*SchemaRepository)(nil)

func NewSchemaRepository(pool *pgxpool.Pool) *SchemaRepository {
	return &SchemaRepository{pool: pool}
}

// Ping is the connectivity probe.
func (r *SchemaRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("connectivity probe failed: %w", err)
	}
	return nil
}

// TableCount counts user tables in the public schema.
func (r *SchemaRepository) TableCount(ctx context.Context) (int, error) {
	query := `
        SELECT count(*)
        FROM information_schema.tables
        WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`

	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return count, nil
}

// TableExists reports whether the named table exists in the public schema.
func (r *SchemaRepository) TableExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS(
        SELECT 1 FROM information_schema.tables
        WHERE table_schema = 'public' AND table_name = $1
    )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}

// AppliedCount counts applied ledger rows with a query independent of the
// ledger repository, so the health checker can reconcile the two.
func (r *SchemaRepository) AppliedCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM schema_migrations WHERE status = $1`, api.StatusApplied).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count applied migrations: %w", err)
	}
	return count, nil
}
