package utils

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// DumpParams are the connection parameters handed to the external dump tool.
type DumpParams struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// BuildConnectionString constructs a connection string from environment variables.
// Used when DATABASE_URL is not provided directly.
func BuildConnectionString(dbName string) (string, error) {
	host := getEnvOrDefault("DB_HOST", "localhost")
	portStr := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := os.Getenv("DB_PASSWORD") // No default for password

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid port number: %w", err)
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		user,
		password,
		host,
		port,
		dbName,
	), nil
}

// ParseDumpParams breaks a postgres URL into the pieces pg_dump wants as
// individual flags.
func ParseDumpParams(connString string) (*DumpParams, error) {
	parsed, err := url.Parse(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return nil, fmt.Errorf("unsupported connection scheme: %s", parsed.Scheme)
	}

	params := &DumpParams{
		Host:     parsed.Hostname(),
		Port:     parsed.Port(),
		Database: trimLeadingSlash(parsed.Path),
	}
	if params.Host == "" {
		params.Host = "localhost"
	}
	if params.Port == "" {
		params.Port = "5432"
	}
	if params.Database == "" {
		return nil, fmt.Errorf("connection string has no database name: %s", redact(parsed))
	}

	if parsed.User != nil {
		params.User = parsed.User.Username()
		params.Password, _ = parsed.User.Password()
	}
	if params.User == "" {
		params.User = "postgres"
	}

	return params, nil
}

func trimLeadingSlash(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

// redact strips credentials before a URL lands in an error message.
func redact(u *url.URL) string {
	clone := *u
	clone.User = nil
	return clone.String()
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
