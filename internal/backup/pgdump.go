package backup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dfryer1193/shift/internal/config"
	"github.com/dfryer1193/shift/internal/data/utils"
	"github.com/rs/zerolog/log"
)

// PgDump snapshots the target database with the external dump tool before a
// migration run. Failures are returned to the caller but treated as
// non-fatal there: a run proceeds without a safety net, audibly.
type PgDump struct {
	databaseURL string
	dir         string
	tool        string
	timeout     time.Duration
	enabled     bool
}

func NewPgDump(cfg *config.Config) *PgDump {
	return &PgDump{
		databaseURL: cfg.DatabaseURL,
		dir:         cfg.Backup.Dir,
		tool:        cfg.Backup.Tool,
		timeout:     cfg.Backup.Timeout,
		enabled:     cfg.Backup.Enabled,
	}
}

// Enabled reports whether backups are configured at all.
func (b *PgDump) Enabled() bool {
	return b.enabled
}

// Create writes a timestamped dump under the backups directory and returns
// its path. Disabled backups return an empty path and no error.
func (b *PgDump) Create(ctx context.Context) (string, error) {
	if !b.enabled {
		return "", nil
	}

	params, err := utils.ParseDumpParams(b.databaseURL)
	if err != nil {
		return "", fmt.Errorf("cannot derive dump parameters: %w", err)
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory %s: %w", b.dir, err)
	}

	path := filepath.Join(b.dir, fmt.Sprintf("backup_%s_%s.sql",
		params.Database, time.Now().UTC().Format("20060102_150405")))

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.tool,
		"-h", params.Host,
		"-p", params.Port,
		"-U", params.User,
		"-d", params.Database,
		"-f", path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+params.Password)

	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Warn().
			Err(err).
			Str("tool", b.tool).
			Str("output", string(output)).
			Msg("backup failed")
		// Leave no half-written artifact behind.
		_ = os.Remove(path)
		return "", fmt.Errorf("%s failed: %w", b.tool, err)
	}

	log.Info().Str("path", path).Msg("backup created")
	return path, nil
}
