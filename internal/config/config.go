package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	dataUtils "github.com/dfryer1193/shift/internal/data/utils"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Values come from an optional
// config.yaml, then environment overrides; every field has a usable default
// so the tool runs with nothing but DATABASE_URL set.
type Config struct {
	Environment     string           `mapstructure:"environment"`
	DatabaseURL     string           `mapstructure:"databaseUrl"`
	MigrationsDir   string           `mapstructure:"migrationsDir"`
	CriticalTables  []string         `mapstructure:"criticalTables"`
	HaltOnFailure   bool             `mapstructure:"haltOnFailure"`
	RequireApproval bool             `mapstructure:"requireApproval"`
	Connection      ConnectionConfig `mapstructure:"connection"`
	Backup          BackupConfig     `mapstructure:"backup"`
	Rollback        RollbackConfig   `mapstructure:"rollback"`
	Audit           AuditConfig      `mapstructure:"audit"`
	Health          HealthConfig     `mapstructure:"health"`
}

// ConnectionConfig bounds the database pool and connect retry loop.
type ConnectionConfig struct {
	MaxConns       int32         `mapstructure:"maxConns"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRetries     int           `mapstructure:"maxRetries"`
	RetryDelay     time.Duration `mapstructure:"retryDelay"`
}

// BackupConfig controls the pre-run pg_dump snapshot.
type BackupConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir"`
	Tool    string        `mapstructure:"tool"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RollbackConfig toggles the rollback controller.
type RollbackConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuditConfig controls the append-only audit log.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HealthConfig bounds the health checker and per-migration execution.
type HealthConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MigrationTimeout time.Duration `mapstructure:"migrationTimeout"`
}

// Load reads configuration from the given directory (config.yaml, optional)
// and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("migrationsDir", "migrations")
	v.SetDefault("criticalTables", []string{})
	v.SetDefault("haltOnFailure", true)
	v.SetDefault("requireApproval", false)
	v.SetDefault("connection.maxConns", 1)
	v.SetDefault("connection.connectTimeout", 10*time.Second)
	v.SetDefault("connection.idleTimeout", time.Minute)
	v.SetDefault("connection.maxRetries", 3)
	v.SetDefault("connection.retryDelay", 2*time.Second)
	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.tool", "pg_dump")
	v.SetDefault("backup.timeout", 5*time.Minute)
	v.SetDefault("rollback.enabled", true)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.path", "migration-audit.log")
	v.SetDefault("health.timeout", 10*time.Second)
	v.SetDefault("health.migrationTimeout", 5*time.Minute)
}

// applyEnvOverrides lets deployment environments win over the config file.
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.DatabaseURL = url
	}
	if config.DatabaseURL == "" {
		// Fall back to the individual DB_* variables.
		if dbName := os.Getenv("DB_NAME"); dbName != "" {
			if url, err := dataUtils.BuildConnectionString(dbName); err == nil {
				config.DatabaseURL = url
			}
		}
	}
	if env := os.Getenv("SHIFT_ENV"); env != "" {
		config.Environment = env
	}
	if dir := os.Getenv("SHIFT_MIGRATIONS_DIR"); dir != "" {
		config.MigrationsDir = dir
	}
	if val := os.Getenv("SHIFT_BACKUP_ENABLED"); val != "" {
		config.Backup.Enabled = val == "true"
	}
	if val := os.Getenv("SHIFT_ROLLBACK_ENABLED"); val != "" {
		config.Rollback.Enabled = val == "true"
	}
	if val := os.Getenv("SHIFT_AUDIT_ENABLED"); val != "" {
		config.Audit.Enabled = val == "true"
	}
	if val := os.Getenv("SHIFT_MAX_RETRIES"); val != "" {
		if retries, err := strconv.Atoi(val); err == nil {
			config.Connection.MaxRetries = retries
		}
	}

	// Production defaults to requiring explicit approval.
	if config.Environment == "production" {
		config.RequireApproval = true
	}
}

func validate(config *Config) error {
	if config.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (set DATABASE_URL or databaseUrl)")
	}
	if config.MigrationsDir == "" {
		return fmt.Errorf("migrations directory is required")
	}
	if config.Connection.MaxConns <= 0 {
		return fmt.Errorf("connection.maxConns must be positive")
	}
	if config.Connection.MaxRetries < 0 {
		return fmt.Errorf("connection.maxRetries must not be negative")
	}
	return nil
}
