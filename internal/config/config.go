// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the API server will bind to.
	ServerHost string
	// ServerPort is the port number the API server will listen on.
	ServerPort int

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// SecretsFilePath is the optional key=value secrets file loaded at startup.
	// A missing file is non-fatal; the resolver continues with other sources.
	SecretsFilePath string

	// AuditLogDir is the directory holding the rotating audit log files.
	AuditLogDir string
	// AuditMaxFileSizeMB is the rotation threshold for a single audit log file.
	AuditMaxFileSizeMB int
	// AuditRetentionDays is the age after which sealed audit files are deleted.
	AuditRetentionDays int
	// AuditFlushInterval is the period of the background queue drain.
	AuditFlushInterval time.Duration
	// AuditCleanupInterval is the period of the retention sweep.
	AuditCleanupInterval time.Duration

	// ProvisionMaxConcurrentHosts bounds how many hosts are provisioned in parallel.
	ProvisionMaxConcurrentHosts int
	// ProvisionCommandsPerSec throttles remote command dispatch across all hosts.
	ProvisionCommandsPerSec float64
	// ProvisionCommandBurst is the burst size for the command rate limiter.
	ProvisionCommandBurst int

	// CORSEnabled indicates whether CORS is enabled on the API server.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Secrets
		SecretsFilePath: env.GetString("MAILFORGE_SECRETS_FILE", ""),

		// Audit trail
		AuditLogDir:          env.GetString("AUDIT_LOG_DIR", "audit-logs"),
		AuditMaxFileSizeMB:   env.GetInt("AUDIT_MAX_FILE_SIZE_MB", 100),
		AuditRetentionDays:   env.GetInt("AUDIT_RETENTION_DAYS", 90),
		AuditFlushInterval:   env.GetDuration("AUDIT_FLUSH_INTERVAL_SECONDS", 5, time.Second),
		AuditCleanupInterval: env.GetDuration("AUDIT_CLEANUP_INTERVAL_HOURS", 24, time.Hour),

		// Provisioning
		ProvisionMaxConcurrentHosts: env.GetInt("PROVISION_MAX_CONCURRENT_HOSTS", 4),
		ProvisionCommandsPerSec:     env.GetFloat64("PROVISION_COMMANDS_PER_SEC", 10.0),
		ProvisionCommandBurst:       env.GetInt("PROVISION_COMMAND_BURST", 20),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "mailforge"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}
