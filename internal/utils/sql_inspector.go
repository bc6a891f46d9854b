package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// SQLInspector screens migration bodies for hazards. Findings are advisory:
// legitimate migrations do drop tables, so detection warns operators instead
// of blocking the run.
type SQLInspector struct{}

func NewSQLInspector() *SQLInspector {
	return &SQLInspector{}
}

var (
	sqlVerbPattern    = regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP|INSERT|UPDATE|DELETE|TRUNCATE|GRANT|REVOKE|COMMENT|SELECT)\b`)
	dropTablePattern  = regexp.MustCompile(`(?i)\bDROP\s+TABLE\s+(IF\s+EXISTS\s+)?`)
	truncatePattern   = regexp.MustCompile(`(?i)\bTRUNCATE\b`)
	deleteFromPattern = regexp.MustCompile(`(?i)^\s*DELETE\s+FROM\b`)
	wherePattern      = regexp.MustCompile(`(?i)\bWHERE\b`)
	commentPattern    = regexp.MustCompile(`(?m)--.*$`)
)

// HasStatements reports whether the body contains any recognizable SQL verb.
// An empty body is not fatal; it could be a deliberate no-op migration.
func (i *SQLInspector) HasStatements(sql string) bool {
	return sqlVerbPattern.MatchString(stripComments(sql))
}

// Inspect returns a warning per destructive pattern found: DROP TABLE
// without IF EXISTS, TRUNCATE, and DELETE without a WHERE clause.
func (i *SQLInspector) Inspect(sql string) []string {
	body := stripComments(sql)
	var warnings []string

	for _, match := range dropTablePattern.FindAllStringSubmatch(body, -1) {
		if match[1] == "" {
			warnings = append(warnings, "DROP TABLE without IF EXISTS")
		}
	}

	if truncatePattern.MatchString(body) {
		warnings = append(warnings, "TRUNCATE removes all rows and cannot be undone without a backup")
	}

	for idx, stmt := range strings.Split(body, ";") {
		if deleteFromPattern.MatchString(stmt) && !wherePattern.MatchString(stmt) {
			warnings = append(warnings, fmt.Sprintf("statement %d: DELETE without WHERE clause", idx+1))
		}
	}

	return warnings
}

func stripComments(sql string) string {
	return commentPattern.ReplaceAllString(sql, "")
}
