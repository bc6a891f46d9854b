package migrations

import (
	"context"
	"fmt"
	"os"

	"github.com/dfryer1193/shift/api"
	"github.com/dfryer1193/shift/internal/utils"
)

// SchemaProber is the slice of the schema repository the validator needs.
type SchemaProber interface {
	TableCount(ctx context.Context) (int, error)
}

// LedgerReader loads ledger records for the hash-drift check.
type LedgerReader interface {
	Load(ctx context.Context) ([]*api.MigrationRecord, error)
}

// Validator runs every pre-flight check and accumulates the results; checks
// are independent and never short-circuit each other. Compatible flips to
// false only on structural problems. Destructive-SQL findings stay
// advisory because legitimate migrations do drop tables.
type Validator struct {
	schema    SchemaProber
	ledger    LedgerReader
	inspector *utils.SQLInspector
}

func NewValidator(schema SchemaProber, ledger LedgerReader) *Validator {
	return &Validator{
		schema:    schema,
		ledger:    ledger,
		inspector: utils.NewSQLInspector(),
	}
}

// Validate checks pending files against disk, their SQL content, the target
// schema, and the ledger's recorded hashes.
func (v *Validator) Validate(ctx context.Context, files []*api.MigrationFile) *api.ValidationResult {
	result := &api.ValidationResult{
		Compatible:      true,
		Issues:          []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	for _, file := range files {
		if _, err := os.Stat(file.Path); err != nil {
			result.Issues = append(result.Issues,
				fmt.Sprintf("migration file missing: %s", file.Path))
			result.Compatible = false
			continue
		}

		if !v.inspector.HasStatements(file.SQL) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: no recognizable SQL statements (no-op migration?)", file.Version))
		}

		for _, warning := range v.inspector.Inspect(file.SQL) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: %s", file.Version, warning))
		}
	}

	v.checkSchema(ctx, result)
	v.checkHashDrift(ctx, files, result)

	return result
}

func (v *Validator) checkSchema(ctx context.Context, result *api.ValidationResult) {
	count, err := v.schema.TableCount(ctx)
	if err != nil {
		result.Issues = append(result.Issues,
			fmt.Sprintf("could not inspect target schema: %v", err))
		result.Compatible = false
		return
	}

	if count == 0 {
		result.Recommendations = append(result.Recommendations,
			"target schema has no tables; assuming first run against an empty database")
	}
}

// checkHashDrift warns when a file's on-disk content no longer matches what
// was applied. Migration files are supposed to be immutable once run.
func (v *Validator) checkHashDrift(ctx context.Context, files []*api.MigrationFile, result *api.ValidationResult) {
	records, err := v.ledger.Load(ctx)
	if err != nil {
		// Nothing applied yet, or the ledger table is not bootstrapped; no
		// drift to detect either way.
		return
	}

	byVersion := make(map[string]*api.MigrationRecord, len(records))
	for _, record := range records {
		byVersion[record.Version] = record
	}

	for _, file := range files {
		record, ok := byVersion[file.Version]
		if !ok || record.Status != api.StatusApplied {
			continue
		}
		if record.Hash != file.Hash {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: file content changed since it was applied", file.Version))
		}
	}
}
