package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "", cfg.SecretsFilePath)
				assert.Equal(t, "audit-logs", cfg.AuditLogDir)
				assert.Equal(t, 100, cfg.AuditMaxFileSizeMB)
				assert.Equal(t, 90, cfg.AuditRetentionDays)
				assert.Equal(t, 5*time.Second, cfg.AuditFlushInterval)
				assert.Equal(t, 24*time.Hour, cfg.AuditCleanupInterval)
				assert.Equal(t, 4, cfg.ProvisionMaxConcurrentHosts)
				assert.Equal(t, 10.0, cfg.ProvisionCommandsPerSec)
				assert.Equal(t, 20, cfg.ProvisionCommandBurst)
				assert.False(t, cfg.CORSEnabled)
				assert.True(t, cfg.MetricsEnabled)
				assert.Equal(t, "mailforge", cfg.MetricsNamespace)
				assert.Equal(t, 8081, cfg.MetricsPort)
			},
		},
		{
			name: "load custom server configuration",
			envVars: map[string]string{
				"SERVER_HOST": "localhost",
				"SERVER_PORT": "9090",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost", cfg.ServerHost)
				assert.Equal(t, 9090, cfg.ServerPort)
			},
		},
		{
			name: "load custom audit configuration",
			envVars: map[string]string{
				"AUDIT_LOG_DIR":                "/var/log/mailforge/audit",
				"AUDIT_MAX_FILE_SIZE_MB":       "10",
				"AUDIT_RETENTION_DAYS":         "30",
				"AUDIT_FLUSH_INTERVAL_SECONDS": "1",
				"AUDIT_CLEANUP_INTERVAL_HOURS": "6",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/log/mailforge/audit", cfg.AuditLogDir)
				assert.Equal(t, 10, cfg.AuditMaxFileSizeMB)
				assert.Equal(t, 30, cfg.AuditRetentionDays)
				assert.Equal(t, 1*time.Second, cfg.AuditFlushInterval)
				assert.Equal(t, 6*time.Hour, cfg.AuditCleanupInterval)
			},
		},
		{
			name: "load custom provisioning configuration",
			envVars: map[string]string{
				"PROVISION_MAX_CONCURRENT_HOSTS": "2",
				"PROVISION_COMMANDS_PER_SEC":     "5.5",
				"PROVISION_COMMAND_BURST":        "8",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2, cfg.ProvisionMaxConcurrentHosts)
				assert.Equal(t, 5.5, cfg.ProvisionCommandsPerSec)
				assert.Equal(t, 8, cfg.ProvisionCommandBurst)
			},
		},
		{
			name: "load secrets file path",
			envVars: map[string]string{
				"MAILFORGE_SECRETS_FILE": "/etc/mailforge/secrets.env",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/etc/mailforge/secrets.env", cfg.SecretsFilePath)
			},
		},
		{
			name: "load custom log level",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			// Load configuration
			cfg := Load()

			// Validate
			tt.validate(t, cfg)
		})
	}
}

func TestGetGinMode(t *testing.T) {
	assert.Equal(t, "debug", (&Config{LogLevel: "debug"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: "info"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: "error"}).GetGinMode())
}
