package migrations

import (
	"context"

	"github.com/dfryer1193/shift/api"
)

// StatusLedger is the read-only slice of the ledger the status report needs.
type StatusLedger interface {
	Load(ctx context.Context) ([]*api.MigrationRecord, error)
	LatestApplied(ctx context.Context) (*api.MigrationRecord, error)
}

// StatusReporter summarizes the ledger against the files on disk.
type StatusReporter struct {
	ledger  StatusLedger
	scanner Scanner
}

func NewStatusReporter(ledger StatusLedger, scanner Scanner) *StatusReporter {
	return &StatusReporter{ledger: ledger, scanner: scanner}
}

// Summary counts files and records per status. Pending counts files on disk
// whose version has no applied record, mirroring the runner's pending-set
// calculation.
func (s *StatusReporter) Summary(ctx context.Context) (*api.StatusSummary, error) {
	files, err := s.scanner.Scan()
	if err != nil {
		return nil, err
	}

	records, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool)
	summary := &api.StatusSummary{Total: len(files)}
	for _, record := range records {
		switch record.Status {
		case api.StatusApplied:
			applied[record.Version] = true
			summary.Applied++
		case api.StatusFailed:
			summary.Failed++
		}
	}

	for _, file := range files {
		if !applied[file.Version] {
			summary.Pending++
		}
	}

	latest, err := s.ledger.LatestApplied(ctx)
	if err != nil {
		return nil, err
	}
	summary.Latest = latest

	return summary, nil
}

// Records exposes the full ledger history, most recent first.
func (s *StatusReporter) Records(ctx context.Context) ([]*api.MigrationRecord, error) {
	return s.ledger.Load(ctx)
}
