package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/dfryer1193/shift/api"
)

type statusLedgerStub struct {
	records []*api.MigrationRecord
	latest  *api.MigrationRecord
}

func (m *statusLedgerStub) Load(_ context.Context) ([]*api.MigrationRecord, error) {
	return m.records, nil
}

func (m *statusLedgerStub) LatestApplied(_ context.Context) (*api.MigrationRecord, error) {
	return m.latest, nil
}

func TestSummaryCounts(t *testing.T) {
	now := time.Now()
	errText := "bad sql"
	records := []*api.MigrationRecord{
		{Version: "001", Status: api.StatusApplied, AppliedAt: &now},
		{Version: "002", Status: api.StatusApplied, AppliedAt: &now},
		{Version: "003", Status: api.StatusFailed, Error: &errText},
	}
	ledger := &statusLedgerStub{records: records, latest: records[1]}
	scanner := &fakeScanner{files: migrationFiles("001", "002", "003", "004")}

	summary, err := NewStatusReporter(ledger, scanner).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	if summary.Total != 4 {
		t.Errorf("Total = %d, want 4", summary.Total)
	}
	if summary.Applied != 2 {
		t.Errorf("Applied = %d, want 2", summary.Applied)
	}
	// 003 failed and 004 never ran; both still count as pending files.
	if summary.Pending != 2 {
		t.Errorf("Pending = %d, want 2", summary.Pending)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.Latest == nil || summary.Latest.Version != "002" {
		t.Errorf("Latest = %+v, want version 002", summary.Latest)
	}
}

func TestSummaryEmptyLedger(t *testing.T) {
	ledger := &statusLedgerStub{}
	scanner := &fakeScanner{files: migrationFiles("001")}

	summary, err := NewStatusReporter(ledger, scanner).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Pending != 1 || summary.Applied != 0 || summary.Latest != nil {
		t.Errorf("Summary() = %+v, want one pending and nothing else", summary)
	}
}
