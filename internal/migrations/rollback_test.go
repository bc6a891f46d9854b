package migrations

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dfryer1193/shift/api"
)

type latestLedger struct {
	record *api.MigrationRecord
	err    error
}

func (m *latestLedger) LatestApplied(_ context.Context) (*api.MigrationRecord, error) {
	return m.record, m.err
}

type revertRecorder struct {
	reverted []string
	err      error
}

func (m *revertRecorder) Revert(_ context.Context, version, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.reverted = append(m.reverted, version)
	return nil
}

type scriptSource struct {
	scripts map[string]string
	err     error
}

func (m *scriptSource) RollbackSQL(version string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	sql, ok := m.scripts[version]
	return sql, ok, nil
}

func appliedAt(version string) *api.MigrationRecord {
	now := time.Now()
	return &api.MigrationRecord{Version: version, Name: "m_" + version, Status: api.StatusApplied, AppliedAt: &now}
}

func TestRollbackLast(t *testing.T) {
	executor := &revertRecorder{}
	rollbacker := NewRollbacker(
		&latestLedger{record: appliedAt("003")},
		executor,
		&scriptSource{scripts: map[string]string{"003": "DROP INDEX idx_posts;"}},
		&fakeAudit{},
		true,
	)

	version, err := rollbacker.RollbackLast(context.Background())
	if err != nil {
		t.Fatalf("RollbackLast() error = %v", err)
	}
	if version != "003" {
		t.Errorf("version = %s, want 003", version)
	}
	// Exactly one migration reverted; earlier ones untouched.
	if len(executor.reverted) != 1 || executor.reverted[0] != "003" {
		t.Errorf("reverted = %v, want only 003", executor.reverted)
	}
}

func TestRollbackWithoutScriptAborts(t *testing.T) {
	executor := &revertRecorder{}
	audit := &fakeAudit{}
	rollbacker := NewRollbacker(
		&latestLedger{record: appliedAt("003")},
		executor,
		&scriptSource{scripts: map[string]string{}},
		audit,
		true,
	)

	_, err := rollbacker.RollbackLast(context.Background())
	if !errors.Is(err, ErrRollbackUnavailable) {
		t.Fatalf("RollbackLast() error = %v, want ErrRollbackUnavailable", err)
	}
	if len(executor.reverted) != 0 {
		t.Error("rollback mutated state without a script")
	}
	if !audit.has("rollback_unavailable:003") {
		t.Errorf("audit trail %v missing rollback_unavailable", audit.actions)
	}
}

func TestRollbackEmptyLedger(t *testing.T) {
	rollbacker := NewRollbacker(&latestLedger{}, &revertRecorder{}, &scriptSource{}, &fakeAudit{}, true)

	if _, err := rollbacker.RollbackLast(context.Background()); !errors.Is(err, ErrNothingToRollback) {
		t.Fatalf("RollbackLast() error = %v, want ErrNothingToRollback", err)
	}
}

func TestRollbackDisabled(t *testing.T) {
	rollbacker := NewRollbacker(&latestLedger{record: appliedAt("001")}, &revertRecorder{}, &scriptSource{}, &fakeAudit{}, false)

	if _, err := rollbacker.RollbackLast(context.Background()); !errors.Is(err, ErrRollbackDisabled) {
		t.Fatalf("RollbackLast() error = %v, want ErrRollbackDisabled", err)
	}
}

func TestRollbackExecutorFailureIsAudited(t *testing.T) {
	audit := &fakeAudit{}
	rollbacker := NewRollbacker(
		&latestLedger{record: appliedAt("002")},
		&revertRecorder{err: fmt.Errorf("syntax error")},
		&scriptSource{scripts: map[string]string{"002": "DROP TABLE posts;"}},
		audit,
		true,
	)

	if _, err := rollbacker.RollbackLast(context.Background()); err == nil {
		t.Fatal("RollbackLast() expected error")
	}
	if !audit.has("rollback_failed:002") {
		t.Errorf("audit trail %v missing rollback_failed", audit.actions)
	}
}
