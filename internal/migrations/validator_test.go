package migrations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dfryer1193/shift/api"
	"github.com/dfryer1193/shift/internal/utils"
)

type countProber struct {
	count int
	err   error
}

func (m *countProber) TableCount(_ context.Context) (int, error) {
	return m.count, m.err
}

type recordLoader struct {
	records []*api.MigrationRecord
	err     error
}

func (m *recordLoader) Load(_ context.Context) ([]*api.MigrationRecord, error) {
	return m.records, m.err
}

func fileOnDisk(t *testing.T, version, name, sql string) *api.MigrationFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), version+"_"+name+".sql")
	if err := os.WriteFile(path, []byte(sql), 0o644); err != nil {
		t.Fatal(err)
	}
	return &api.MigrationFile{
		Version: version,
		Name:    name,
		Path:    path,
		SQL:     sql,
		Hash:    utils.HashContent([]byte(sql)),
	}
}

func TestValidateCleanPlan(t *testing.T) {
	validator := NewValidator(&countProber{count: 5}, &recordLoader{})
	files := []*api.MigrationFile{fileOnDisk(t, "001", "create_users", "CREATE TABLE users (id INT);")}

	result := validator.Validate(context.Background(), files)

	if !result.Compatible {
		t.Fatalf("Compatible = false, issues = %v", result.Issues)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}
}

func TestValidateMissingFileIsFatal(t *testing.T) {
	validator := NewValidator(&countProber{count: 5}, &recordLoader{})
	files := []*api.MigrationFile{{
		Version: "001",
		Name:    "ghost",
		Path:    "/nonexistent/001_ghost.sql",
		SQL:     "CREATE TABLE t (id INT);",
	}}

	result := validator.Validate(context.Background(), files)

	if result.Compatible {
		t.Fatal("Compatible = true for a missing file")
	}
	if len(result.Issues) != 1 || !strings.Contains(result.Issues[0], "missing") {
		t.Errorf("Issues = %v, want a missing-file issue", result.Issues)
	}
}

func TestValidateDestructiveSQLIsAdvisory(t *testing.T) {
	validator := NewValidator(&countProber{count: 5}, &recordLoader{})
	files := []*api.MigrationFile{fileOnDisk(t, "001", "drop_legacy", "DROP TABLE legacy;")}

	result := validator.Validate(context.Background(), files)

	// Operators must consciously proceed, but destructive SQL never blocks.
	if !result.Compatible {
		t.Fatal("Compatible = false for destructive SQL, want true")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a destructive-SQL warning")
	}
}

func TestValidateNoOpMigrationWarns(t *testing.T) {
	validator := NewValidator(&countProber{count: 5}, &recordLoader{})
	files := []*api.MigrationFile{fileOnDisk(t, "001", "placeholder", "-- reserved for later\n")}

	result := validator.Validate(context.Background(), files)

	if !result.Compatible {
		t.Fatal("Compatible = false for a no-op migration")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "no recognizable SQL") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a no-op warning", result.Warnings)
	}
}

func TestValidateEmptySchemaRecommends(t *testing.T) {
	validator := NewValidator(&countProber{count: 0}, &recordLoader{})

	result := validator.Validate(context.Background(), nil)

	if !result.Compatible {
		t.Fatal("Compatible = false for empty schema, want true (first run)")
	}
	if len(result.Recommendations) == 0 {
		t.Error("expected a first-run recommendation")
	}
}

func TestValidateUnreachableSchemaIsFatal(t *testing.T) {
	validator := NewValidator(&countProber{err: fmt.Errorf("connection refused")}, &recordLoader{})

	result := validator.Validate(context.Background(), nil)

	if result.Compatible {
		t.Fatal("Compatible = true for unreachable schema")
	}
}

func TestValidateChecksAllFilesWithoutShortCircuit(t *testing.T) {
	validator := NewValidator(&countProber{count: 5}, &recordLoader{})
	files := []*api.MigrationFile{
		{Version: "001", Path: "/nonexistent/001.sql", SQL: "CREATE TABLE a (id INT);"},
		{Version: "002", Path: "/nonexistent/002.sql", SQL: "CREATE TABLE b (id INT);"},
		fileOnDisk(t, "003", "truncate", "TRUNCATE audit;"),
	}

	result := validator.Validate(context.Background(), files)

	if len(result.Issues) != 2 {
		t.Errorf("Issues = %v, want both missing files reported", result.Issues)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v, want the TRUNCATE finding as well", result.Warnings)
	}
}

func TestValidateDetectsHashDrift(t *testing.T) {
	file := fileOnDisk(t, "005", "edited", "CREATE TABLE edited (id INT);")
	appliedAt := time.Now()
	ledger := &recordLoader{records: []*api.MigrationRecord{{
		Version:   "005",
		Status:    api.StatusApplied,
		Hash:      "hash-of-what-actually-ran",
		AppliedAt: &appliedAt,
	}}}
	validator := NewValidator(&countProber{count: 5}, ledger)

	result := validator.Validate(context.Background(), []*api.MigrationFile{file})

	if !result.Compatible {
		t.Fatal("drift must warn, not block")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "changed since it was applied") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a hash-drift warning", result.Warnings)
	}
}
