package api

import "time"

// ValidationResult accumulates every pre-flight finding. Compatible is false
// only on structural problems (missing files, unreachable schema); destructive
// SQL detection lands in Warnings and never blocks a run.
type ValidationResult struct {
	Compatible      bool     `json:"compatible"`
	Issues          []string `json:"issues"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// HealthReport is computed per invocation and never persisted.
type HealthReport struct {
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues"`
}

// AuditEntry is one append-only line in the audit log.
type AuditEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Migration   string    `json:"migration,omitempty"`
	User        string    `json:"user"`
	Details     string    `json:"details"`
	Environment string    `json:"environment"`
	DryRun      bool      `json:"dryRun"`
	RunID       string    `json:"runId"`
}

// RunResult summarizes a single orchestrator run.
type RunResult struct {
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
	DryRun        bool              `json:"dryRun"`
	BackupPath    string            `json:"backupPath,omitempty"`
	Applied       []string          `json:"applied"`
	FailedVersion string            `json:"failedVersion,omitempty"`
	Validation    *ValidationResult `json:"validation,omitempty"`
	Health        *HealthReport     `json:"health,omitempty"`
}
