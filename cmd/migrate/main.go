package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/dfryer1193/shift/internal/audit"
	"github.com/dfryer1193/shift/internal/backup"
	"github.com/dfryer1193/shift/internal/config"
	"github.com/dfryer1193/shift/internal/data/repository/postgres"
	"github.com/dfryer1193/shift/internal/health"
	"github.com/dfryer1193/shift/internal/migrations"
	"github.com/dfryer1193/shift/internal/utils"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type cliFlags struct {
	dryRun        bool
	validateOnly  bool
	noBackup      bool
	noRollback    bool
	status        bool
	rollback      bool
	approve       bool
	migrationsDir string
	configPath    string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	flags := parseFlags()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(flags); err != nil {
		log.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}
	flag.BoolVar(&flags.dryRun, "dry-run", false, "report what would happen without touching the database")
	flag.BoolVar(&flags.validateOnly, "validate-only", false, "run pre-flight validation and exit")
	flag.BoolVar(&flags.noBackup, "no-backup", false, "skip the pre-run backup")
	flag.BoolVar(&flags.noRollback, "no-rollback", false, "disable the rollback controller for this invocation")
	flag.BoolVar(&flags.status, "status", false, "print the migration status summary and exit")
	flag.BoolVar(&flags.rollback, "rollback", false, "roll back the most recently applied migration and exit")
	flag.BoolVar(&flags.approve, "approve", false, "approve a run in an environment that requires it")
	flag.StringVar(&flags.migrationsDir, "migrations", "", "migrations directory (overrides config)")
	flag.StringVar(&flags.configPath, "config", ".", "directory containing config.yaml")
	flag.Parse()
	return flags
}

func run(flags *cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.migrationsDir != "" {
		cfg.MigrationsDir = flags.migrationsDir
	}
	if flags.noRollback {
		cfg.Rollback.Enabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.ConnectOptions{
		MaxConns:       cfg.Connection.MaxConns,
		ConnectTimeout: cfg.Connection.ConnectTimeout,
		IdleTimeout:    cfg.Connection.IdleTimeout,
		MaxRetries:     cfg.Connection.MaxRetries,
		RetryDelay:     cfg.Connection.RetryDelay,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	ledger := postgres.NewLedgerRepository(pool)
	schema := postgres.NewSchemaRepository(pool)
	executor := postgres.NewExecutor(pool)
	scanner := utils.NewMigrationScanner(cfg.MigrationsDir)
	validator := migrations.NewValidator(schema, ledger)
	checker := health.NewChecker(schema, ledger, cfg.CriticalTables, cfg.Health.Timeout)

	auditLog := audit.New(cfg.Audit.Path, cfg.Environment, cfg.Audit.Enabled, flags.dryRun)
	defer auditLog.Close()

	switch {
	case flags.status:
		return printStatus(ctx, migrations.NewStatusReporter(ledger, scanner))
	case flags.validateOnly:
		return validateOnly(ctx, scanner, validator)
	case flags.rollback:
		rollbacker := migrations.NewRollbacker(ledger, executor, scanner, auditLog, cfg.Rollback.Enabled)
		version, err := rollbacker.RollbackLast(ctx)
		if err != nil {
			return err
		}
		log.Info().Str("version", version).Msg("rolled back")
		return nil
	default:
		runner := migrations.NewRunner(ledger, executor, scanner, validator, backup.NewPgDump(cfg), checker, auditLog, migrations.RunnerConfig{
			Environment:      cfg.Environment,
			HaltOnFailure:    cfg.HaltOnFailure,
			RequireApproval:  cfg.RequireApproval,
			MigrationTimeout: cfg.Health.MigrationTimeout,
		})
		result, err := runner.Run(ctx, migrations.RunOptions{
			DryRun:   flags.dryRun,
			NoBackup: flags.noBackup,
			Approved: flags.approve,
		})
		if result != nil {
			log.Info().
				Strs("applied", result.Applied).
				Bool("dryRun", result.DryRun).
				Msg("run finished")
		}
		return err
	}
}

func printStatus(ctx context.Context, reporter *migrations.StatusReporter) error {
	summary, err := reporter.Summary(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func validateOnly(ctx context.Context, scanner *utils.MigrationScanner, validator *migrations.Validator) error {
	files, err := scanner.Scan()
	if err != nil {
		return err
	}
	result := validator.Validate(ctx, files)
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Compatible {
		return errors.New("validation found blocking issues")
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
