package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/dfryer1193/shift/api"
	"github.com/rs/zerolog/log"
)

// Ledger is the slice of the ledger repository the runner mutates.
type Ledger interface {
	EnsureSchema(ctx context.Context) error
	AppliedVersions(ctx context.Context) (map[string]bool, error)
	RecordStart(ctx context.Context, version, name, hash string) error
	RecordFailure(ctx context.Context, version, errText string) error
}

// Executor applies migrations transactionally and serializes runs.
type Executor interface {
	Apply(ctx context.Context, file *api.MigrationFile) (time.Duration, error)
	AcquireRunLock(ctx context.Context) (bool, error)
	ReleaseRunLock(ctx context.Context) error
}

// Scanner discovers migration files, sorted ascending by version.
type Scanner interface {
	Scan() ([]*api.MigrationFile, error)
}

// PreflightValidator runs the pre-flight checks.
type PreflightValidator interface {
	Validate(ctx context.Context, files []*api.MigrationFile) *api.ValidationResult
}

// Backup snapshots the database before migrations run.
type Backup interface {
	Enabled() bool
	Create(ctx context.Context) (string, error)
}

// HealthChecker verifies the schema before and after a run.
type HealthChecker interface {
	Check(ctx context.Context) *api.HealthReport
}

// Auditor records every state-changing action.
type Auditor interface {
	Record(action, version, details string)
}

// RunOptions are per-invocation switches from the CLI.
type RunOptions struct {
	DryRun   bool
	NoBackup bool
	Approved bool
}

// Runner sequences validator, backup, per-migration transactional apply,
// ledger updates, and health checks. Migrations are strictly serial:
// version N+1 never starts until N reaches a terminal state.
type Runner struct {
	ledger           Ledger
	executor         Executor
	scanner          Scanner
	validator        PreflightValidator
	backup           Backup
	health           HealthChecker
	audit            Auditor
	environment      string
	haltOnFailure    bool
	requireApproval  bool
	migrationTimeout time.Duration
}

type RunnerConfig struct {
	Environment      string
	HaltOnFailure    bool
	RequireApproval  bool
	MigrationTimeout time.Duration
}

func NewRunner(
	ledger Ledger,
	executor Executor,
	scanner Scanner,
	validator PreflightValidator,
	backup Backup,
	health HealthChecker,
	audit Auditor,
	cfg RunnerConfig,
) *Runner {
	return &Runner{
		ledger:           ledger,
		executor:         executor,
		scanner:          scanner,
		validator:        validator,
		backup:           backup,
		health:           health,
		audit:            audit,
		environment:      cfg.Environment,
		haltOnFailure:    cfg.HaltOnFailure,
		requireApproval:  cfg.RequireApproval,
		migrationTimeout: cfg.MigrationTimeout,
	}
}

// Run executes the full orchestration sequence. The returned RunResult is
// populated even when err is non-nil so callers can report partial progress.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*api.RunResult, error) {
	result := &api.RunResult{
		StartedAt: time.Now().UTC(),
		DryRun:    opts.DryRun,
		Applied:   []string{},
	}
	defer func() { result.FinishedAt = time.Now().UTC() }()

	if r.requireApproval && !opts.DryRun && !opts.Approved {
		return result, fmt.Errorf("%w (environment: %s)", ErrApprovalRequired, r.environment)
	}

	r.audit.Record("run_started", "", fmt.Sprintf("environment=%s dryRun=%t", r.environment, opts.DryRun))

	files, err := r.scanner.Scan()
	if err != nil {
		r.audit.Record("run_failed", "", err.Error())
		return result, err
	}

	if !opts.DryRun {
		if err := r.ledger.EnsureSchema(ctx); err != nil {
			r.audit.Record("run_failed", "", err.Error())
			return result, err
		}

		acquired, err := r.executor.AcquireRunLock(ctx)
		if err != nil {
			r.audit.Record("run_failed", "", err.Error())
			return result, err
		}
		if !acquired {
			r.audit.Record("run_rejected", "", "advisory run lock held by another process")
			return result, ErrRunLocked
		}
		defer func() {
			if err := r.executor.ReleaseRunLock(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to release run lock")
			}
		}()
	}

	log.Info().Int("files", len(files)).Msg("validating migration plan")
	result.Validation = r.validator.Validate(ctx, files)
	for _, warning := range result.Validation.Warnings {
		log.Warn().Msg(warning)
	}
	if !result.Validation.Compatible {
		if !opts.DryRun {
			r.audit.Record("run_rejected", "", fmt.Sprintf("validation issues: %v", result.Validation.Issues))
			return result, fmt.Errorf("%w: %v", ErrValidationRejected, result.Validation.Issues)
		}
		log.Warn().Strs("issues", result.Validation.Issues).Msg("validation would reject this run")
	}

	r.runBackup(ctx, opts, result)

	pre := r.health.Check(ctx)
	if !pre.Healthy {
		// Pre-run issues are informational; an empty database is expected
		// to look unhealthy before its first migration.
		log.Warn().Strs("issues", pre.Issues).Msg("pre-run health check reported issues")
	}

	pending, err := r.pendingFiles(ctx, files, opts.DryRun)
	if err != nil {
		r.audit.Record("run_failed", "", err.Error())
		return result, err
	}
	log.Info().Int("pending", len(pending)).Msg("calculated pending migrations")

	for _, file := range pending {
		if err := r.applyOne(ctx, file, opts, result); err != nil {
			if r.haltOnFailure {
				r.audit.Record("run_failed", file.Version, err.Error())
				return result, err
			}
			log.Warn().Str("version", file.Version).Msg("continuing past failed migration")
		}
	}

	if !opts.DryRun {
		result.Health = r.health.Check(ctx)
		if !result.Health.Healthy {
			r.audit.Record("run_unhealthy", "", fmt.Sprintf("issues: %v", result.Health.Issues))
			return result, fmt.Errorf("%w: %v", ErrUnhealthy, result.Health.Issues)
		}
	}

	r.audit.Record("run_completed", "", fmt.Sprintf("applied=%d", len(result.Applied)))
	return result, nil
}

func (r *Runner) runBackup(ctx context.Context, opts RunOptions, result *api.RunResult) {
	if opts.NoBackup || !r.backup.Enabled() {
		return
	}
	if opts.DryRun {
		log.Info().Msg("dry run: would create backup")
		return
	}

	path, err := r.backup.Create(ctx)
	if err != nil {
		// Non-fatal, but always audited so operators can see a run
		// proceeded without a safety net.
		r.audit.Record("backup_failed", "", err.Error())
		return
	}
	result.BackupPath = path
	r.audit.Record("backup_created", "", path)
}

// pendingFiles is the set difference between files on disk and applied
// ledger versions. A file only ever leaves this set by being applied.
func (r *Runner) pendingFiles(ctx context.Context, files []*api.MigrationFile, dryRun bool) ([]*api.MigrationFile, error) {
	applied, err := r.ledger.AppliedVersions(ctx)
	if err != nil {
		if !dryRun {
			return nil, err
		}
		// In a dry run the ledger may not be bootstrapped yet.
		log.Warn().Err(err).Msg("ledger unavailable, treating every migration as pending")
		applied = map[string]bool{}
	}

	var pending []*api.MigrationFile
	for _, file := range files {
		if !applied[file.Version] {
			pending = append(pending, file)
		}
	}
	return pending, nil
}

func (r *Runner) applyOne(ctx context.Context, file *api.MigrationFile, opts RunOptions, result *api.RunResult) error {
	if opts.DryRun {
		log.Info().
			Str("version", file.Version).
			Str("name", file.Name).
			Msg("dry run: would apply migration")
		result.Applied = append(result.Applied, file.Version)
		return nil
	}

	log.Info().Str("version", file.Version).Str("name", file.Name).Msg("applying migration")
	r.audit.Record("migration_started", file.Version, file.Name)

	if err := r.ledger.RecordStart(ctx, file.Version, file.Name, file.Hash); err != nil {
		return err
	}

	applyCtx := ctx
	if r.migrationTimeout > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(ctx, r.migrationTimeout)
		defer cancel()
	}

	duration, err := r.executor.Apply(applyCtx, file)
	if err != nil {
		result.FailedVersion = file.Version
		if recordErr := r.ledger.RecordFailure(ctx, file.Version, err.Error()); recordErr != nil {
			log.Error().Err(recordErr).Str("version", file.Version).Msg("failed to record migration failure")
		}
		r.audit.Record("migration_failed", file.Version, err.Error())
		return fmt.Errorf("%w: %s: %v", ErrMigrationFailed, file.Version, err)
	}

	result.Applied = append(result.Applied, file.Version)
	r.audit.Record("migration_applied", file.Version, fmt.Sprintf("duration=%s", duration))
	log.Info().
		Str("version", file.Version).
		Dur("duration", duration).
		Msg("migration applied")
	return nil
}
