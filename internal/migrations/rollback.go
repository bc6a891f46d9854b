package migrations

import (
	"context"
	"fmt"

	"github.com/dfryer1193/shift/api"
	"github.com/rs/zerolog/log"
)

// RollbackLedger finds the record to revert.
type RollbackLedger interface {
	LatestApplied(ctx context.Context) (*api.MigrationRecord, error)
}

// RollbackExecutor runs the rollback script and flips the ledger row in one
// transaction.
type RollbackExecutor interface {
	Revert(ctx context.Context, version, rollbackSQL string) error
}

// RollbackScriptSource resolves the paired rollback script for a version.
type RollbackScriptSource interface {
	RollbackSQL(version string) (string, bool, error)
}

// Rollbacker reverts exactly one migration: the most recently applied.
// It never infers a rollback by reversing DDL and never cascades.
type Rollbacker struct {
	ledger   RollbackLedger
	executor RollbackExecutor
	scripts  RollbackScriptSource
	audit    Auditor
	enabled  bool
}

func NewRollbacker(ledger RollbackLedger, executor RollbackExecutor, scripts RollbackScriptSource, audit Auditor, enabled bool) *Rollbacker {
	return &Rollbacker{
		ledger:   ledger,
		executor: executor,
		scripts:  scripts,
		audit:    audit,
		enabled:  enabled,
	}
}

// RollbackLast reverts the most recently applied migration, returning its
// version. Without a paired script it aborts with no mutation.
func (r *Rollbacker) RollbackLast(ctx context.Context) (string, error) {
	if !r.enabled {
		return "", ErrRollbackDisabled
	}

	record, err := r.ledger.LatestApplied(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find latest applied migration: %w", err)
	}
	if record == nil {
		return "", ErrNothingToRollback
	}

	rollbackSQL, ok, err := r.scripts.RollbackSQL(record.Version)
	if err != nil {
		return record.Version, err
	}
	if !ok {
		r.audit.Record("rollback_unavailable", record.Version, "no paired rollback script")
		return record.Version, fmt.Errorf("%w (version %s)", ErrRollbackUnavailable, record.Version)
	}

	log.Info().Str("version", record.Version).Str("name", record.Name).Msg("rolling back migration")
	r.audit.Record("rollback_started", record.Version, record.Name)

	if err := r.executor.Revert(ctx, record.Version, rollbackSQL); err != nil {
		r.audit.Record("rollback_failed", record.Version, err.Error())
		return record.Version, err
	}

	r.audit.Record("rollback_completed", record.Version, record.Name)
	return record.Version, nil
}
