package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/dfryer1193/shift/api"
)

// Migration files follow <version>_<name>.sql where the version prefix sorts
// in temporal order (zero-padded sequence or timestamp). A paired
// rollback_<version>.sql is optional.
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

const rollbackPrefix = "rollback_"

type MigrationScanner struct {
	dir string
}

func NewMigrationScanner(dir string) *MigrationScanner {
	return &MigrationScanner{dir: dir}
}

// Scan discovers migration files and returns them sorted ascending by
// version, regardless of directory iteration order. Duplicate versions are
// an error; rollback scripts are paired by version, never treated as
// forward migrations.
func (s *MigrationScanner) Scan() ([]*api.MigrationFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory %s: %w", s.dir, err)
	}

	seen := make(map[string]string)
	var files []*api.MigrationFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) >= len(rollbackPrefix) && name[:len(rollbackPrefix)] == rollbackPrefix {
			continue
		}

		matches := migrationFilePattern.FindStringSubmatch(name)
		if matches == nil {
			continue
		}
		version, migrationName := matches[1], matches[2]

		if prior, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %s: %s and %s", version, prior, name)
		}
		seen[version] = name

		path := filepath.Join(s.dir, name)
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		file := &api.MigrationFile{
			Version: version,
			Name:    migrationName,
			Path:    path,
			SQL:     string(body),
			Hash:    HashContent(body),
		}

		rollbackPath := filepath.Join(s.dir, rollbackPrefix+version+".sql")
		if _, err := os.Stat(rollbackPath); err == nil {
			file.RollbackPath = rollbackPath
		}

		files = append(files, file)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})

	return files, nil
}

// RollbackSQL reads the paired rollback script for a version. The second
// return value reports whether a script exists at all.
func (s *MigrationScanner) RollbackSQL(version string) (string, bool, error) {
	path := filepath.Join(s.dir, rollbackPrefix+version+".sql")
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read rollback script for %s: %w", version, err)
	}
	return string(body), true, nil
}

// HashContent digests a migration body. Stored at apply time, it later
// exposes files edited after they ran.
func HashContent(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
