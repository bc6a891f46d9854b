package health

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dfryer1193/shift/api"
)

type mockProber struct {
	pingErr      error
	tables       map[string]bool
	tableErr     error
	appliedCount int64
	countErr     error
}

func (m *mockProber) Ping(_ context.Context) error {
	return m.pingErr
}

func (m *mockProber) TableExists(_ context.Context, name string) (bool, error) {
	if m.tableErr != nil {
		return false, m.tableErr
	}
	return m.tables[name], nil
}

func (m *mockProber) AppliedCount(_ context.Context) (int64, error) {
	return m.appliedCount, m.countErr
}

type mockLedger struct {
	records []*api.MigrationRecord
	err     error
}

func (m *mockLedger) Load(_ context.Context) ([]*api.MigrationRecord, error) {
	return m.records, m.err
}

func appliedRecord(version string) *api.MigrationRecord {
	now := time.Now()
	return &api.MigrationRecord{Version: version, Status: api.StatusApplied, AppliedAt: &now}
}

func TestCheckHealthy(t *testing.T) {
	prober := &mockProber{
		tables:       map[string]bool{"users": true, "posts": true},
		appliedCount: 2,
	}
	ledger := &mockLedger{records: []*api.MigrationRecord{appliedRecord("001"), appliedRecord("002")}}

	report := NewChecker(prober, ledger, []string{"users", "posts"}, time.Second).Check(context.Background())

	if !report.Healthy {
		t.Fatalf("Check() healthy = false, issues = %v", report.Issues)
	}
	if len(report.Issues) != 0 {
		t.Errorf("Check() issues = %v, want none", report.Issues)
	}
}

func TestCheckAccumulatesAllIssues(t *testing.T) {
	prober := &mockProber{
		pingErr:      fmt.Errorf("connection refused"),
		tables:       map[string]bool{},
		appliedCount: 5,
	}
	ledger := &mockLedger{records: []*api.MigrationRecord{appliedRecord("001")}}

	report := NewChecker(prober, ledger, []string{"users", "posts"}, time.Second).Check(context.Background())

	if report.Healthy {
		t.Fatal("Check() healthy = true, want false")
	}
	// One ping issue, two missing tables, one count mismatch: nothing
	// short-circuits.
	if len(report.Issues) != 4 {
		t.Errorf("Check() issues = %v, want 4", report.Issues)
	}
}

func TestCheckFlagsStuckPendingRow(t *testing.T) {
	prober := &mockProber{appliedCount: 1}
	ledger := &mockLedger{records: []*api.MigrationRecord{
		appliedRecord("001"),
		{Version: "002", Status: api.StatusPending},
	}}

	report := NewChecker(prober, ledger, nil, time.Second).Check(context.Background())

	if report.Healthy {
		t.Fatal("Check() healthy = true, want false")
	}
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "stuck in pending") {
			found = true
		}
	}
	if !found {
		t.Errorf("Check() issues = %v, want a stuck-pending issue", report.Issues)
	}
}

func TestCheckLedgerLoadFailure(t *testing.T) {
	prober := &mockProber{appliedCount: 0}
	ledger := &mockLedger{err: fmt.Errorf("relation does not exist")}

	report := NewChecker(prober, ledger, nil, time.Second).Check(context.Background())

	if report.Healthy {
		t.Fatal("Check() healthy = true, want false")
	}
}

func TestCheckCountMismatch(t *testing.T) {
	prober := &mockProber{appliedCount: 3}
	ledger := &mockLedger{records: []*api.MigrationRecord{appliedRecord("001")}}

	report := NewChecker(prober, ledger, nil, time.Second).Check(context.Background())

	if report.Healthy {
		t.Fatal("Check() healthy = true, want false")
	}
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "mismatch") {
			found = true
		}
	}
	if !found {
		t.Errorf("Check() issues = %v, want a count-mismatch issue", report.Issues)
	}
}
