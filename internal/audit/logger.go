package audit

import (
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/dfryer1193/shift/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger appends structured audit entries to a line-delimited JSON log and
// keeps an in-memory buffer for the session summary. A file write failure
// degrades to console-only output; auditing is never the reason a run aborts.
type Logger struct {
	mu          sync.Mutex
	file        *os.File
	fileLog     zerolog.Logger
	entries     []api.AuditEntry
	runID       string
	actor       string
	environment string
	dryRun      bool
	enabled     bool
}

// New opens (or creates) the audit log at path in append mode. Every failure
// mode still yields a usable Logger.
func New(path, environment string, enabled, dryRun bool) *Logger {
	l := &Logger{
		runID:       uuid.NewString(),
		actor:       currentActor(),
		environment: environment,
		dryRun:      dryRun,
		enabled:     enabled,
	}

	if !enabled {
		return l
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("audit log unavailable, falling back to console only")
		return l
	}

	l.file = file
	l.fileLog = zerolog.New(file)
	return l
}

// Record appends one audit entry. version may be empty for run-level actions.
func (l *Logger) Record(action, version, details string) {
	if !l.enabled {
		return
	}

	entry := api.AuditEntry{
		Timestamp:   time.Now().UTC(),
		Action:      action,
		Migration:   version,
		User:        l.actor,
		Details:     details,
		Environment: l.environment,
		DryRun:      l.dryRun,
		RunID:       l.runID,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	file := l.file
	l.mu.Unlock()

	if file != nil {
		event := l.fileLog.Log().
			Time("timestamp", entry.Timestamp).
			Str("action", entry.Action).
			Str("user", entry.User).
			Str("details", entry.Details).
			Str("environment", entry.Environment).
			Bool("dryRun", entry.DryRun).
			Str("runId", entry.RunID)
		if entry.Migration != "" {
			event = event.Str("migration", entry.Migration)
		}
		event.Send()
	}

	log.Debug().
		Str("action", action).
		Str("migration", version).
		Msg(details)
}

// Entries returns a copy of the session's audit trail.
func (l *Logger) Entries() []api.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]api.AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// RunID identifies every entry written by this process.
func (l *Logger) RunID() string {
	return l.runID
}

// Close releases the underlying file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

func currentActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
