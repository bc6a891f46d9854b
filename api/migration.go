package api

import "time"

// MigrationStatus is the lifecycle state of a migration recorded in the ledger.
type MigrationStatus string

const (
	StatusPending    MigrationStatus = "pending"
	StatusApplied    MigrationStatus = "applied"
	StatusFailed     MigrationStatus = "failed"
	StatusRolledBack MigrationStatus = "rolled_back"
)

// MigrationFile is an immutable migration artifact discovered on disk.
// Version is the sortable filename prefix; Hash is a sha256 digest of the
// file body computed at scan time.
type MigrationFile struct {
	Version      string `json:"version"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	SQL          string `json:"-"`
	Hash         string `json:"hash"`
	RollbackPath string `json:"rollbackPath,omitempty"`
}

// MigrationRecord is one ledger row per migration version ever attempted.
type MigrationRecord struct {
	Version      string          `json:"version" db:"version"`
	Name         string          `json:"name" db:"name"`
	Hash         string          `json:"hash" db:"hash"`
	Status       MigrationStatus `json:"status" db:"status"`
	AppliedAt    *time.Time      `json:"appliedAt,omitempty" db:"applied_at"`
	RolledBackAt *time.Time      `json:"rolledBackAt,omitempty" db:"rolled_back_at"`
	DurationMs   *int64          `json:"durationMs,omitempty" db:"duration_ms"`
	Error        *string         `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// MigrationList wraps ledger records for JSON responses.
type MigrationList struct {
	Migrations []*MigrationRecord `json:"migrations"`
}

// StatusSummary is the ledger rollup printed by --status and served over HTTP.
type StatusSummary struct {
	Total   int              `json:"total"`
	Applied int              `json:"applied"`
	Pending int              `json:"pending"`
	Failed  int              `json:"failed"`
	Latest  *MigrationRecord `json:"latest,omitempty"`
}
