package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dfryer1193/shift/api"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SchemaProber is the read-only slice of the schema repository the checker
// needs. Probes share nothing but the connection pool, so they fan out
// concurrently.
type SchemaProber interface {
	Ping(ctx context.Context) error
	TableExists(ctx context.Context, name string) (bool, error)
	AppliedCount(ctx context.Context) (int64, error)
}

// LedgerReader loads ledger records for the consistency check.
type LedgerReader interface {
	Load(ctx context.Context) ([]*api.MigrationRecord, error)
}

type Checker struct {
	prober         SchemaProber
	ledger         LedgerReader
	criticalTables []string
	timeout        time.Duration
}

func NewChecker(prober SchemaProber, ledger LedgerReader, criticalTables []string, timeout time.Duration) *Checker {
	return &Checker{
		prober:         prober,
		ledger:         ledger,
		criticalTables: criticalTables,
		timeout:        timeout,
	}
}

// Check runs every probe concurrently and accumulates all issues; no probe
// short-circuits another, so one report communicates every detected problem.
func (c *Checker) Check(ctx context.Context) *api.HealthReport {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var mu sync.Mutex
	var issues []string
	addIssue := func(issue string) {
		mu.Lock()
		issues = append(issues, issue)
		mu.Unlock()
	}

	g, probeCtx := errgroup.WithContext(checkCtx)

	g.Go(func() error {
		if err := c.prober.Ping(probeCtx); err != nil {
			addIssue(fmt.Sprintf("database unreachable: %v", err))
		}
		return nil
	})

	for _, table := range c.criticalTables {
		g.Go(func() error {
			exists, err := c.prober.TableExists(probeCtx, table)
			if err != nil {
				addIssue(fmt.Sprintf("could not check table %s: %v", table, err))
				return nil
			}
			if !exists {
				addIssue(fmt.Sprintf("critical table missing: %s", table))
			}
			return nil
		})
	}

	g.Go(func() error {
		c.checkLedgerConsistency(probeCtx, addIssue)
		return nil
	})

	// Probes never return errors; issues are accumulated instead.
	_ = g.Wait()

	sort.Strings(issues)
	report := &api.HealthReport{
		Healthy: len(issues) == 0,
		Issues:  issues,
	}

	log.Info().
		Bool("healthy", report.Healthy).
		Int("issues", len(report.Issues)).
		Msg("health check completed")

	return report
}

// checkLedgerConsistency reconciles an independent applied-count query with
// the loaded ledger records, and flags rows stuck in pending, which mark an
// interrupted run.
func (c *Checker) checkLedgerConsistency(ctx context.Context, addIssue func(string)) {
	count, err := c.prober.AppliedCount(ctx)
	if err != nil {
		addIssue(fmt.Sprintf("could not count applied migrations: %v", err))
		return
	}

	records, err := c.ledger.Load(ctx)
	if err != nil {
		addIssue(fmt.Sprintf("could not load migration ledger: %v", err))
		return
	}

	var applied int64
	for _, record := range records {
		switch record.Status {
		case api.StatusApplied:
			applied++
			if record.AppliedAt == nil {
				addIssue(fmt.Sprintf("ledger row %s is applied but has no applied_at timestamp", record.Version))
			}
		case api.StatusPending:
			addIssue(fmt.Sprintf("ledger row %s is stuck in pending: last run was interrupted", record.Version))
		}
	}

	if applied != count {
		addIssue(fmt.Sprintf("ledger applied-count mismatch: counted %d, loaded %d", count, applied))
	}
}
