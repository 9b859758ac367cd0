// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mailforge/mailforge/internal/audit"
	"github.com/mailforge/mailforge/internal/config"
	"github.com/mailforge/mailforge/internal/crypto"
	"github.com/mailforge/mailforge/internal/http"
	"github.com/mailforge/mailforge/internal/metrics"
	"github.com/mailforge/mailforge/internal/provision"
	"github.com/mailforge/mailforge/internal/secrets"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Core services
	cryptoEngine   *crypto.Engine
	auditTrail     *audit.Trail
	secretResolver *secrets.Resolver

	// Orchestration
	factory *provision.Factory

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	cryptoEngineInit    sync.Once
	auditTrailInit      sync.Once
	secretResolverInit  sync.Once
	factoryInit         sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. Falls back to the
// no-op implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// CryptoEngine returns the passphrase encryption engine.
func (c *Container) CryptoEngine() *crypto.Engine {
	c.cryptoEngineInit.Do(func() {
		c.cryptoEngine = crypto.NewEngine()
	})
	return c.cryptoEngine
}

// AuditTrail returns the audit trail service. The trail is created lazily and
// initialized on first logging call.
func (c *Container) AuditTrail() (*audit.Trail, error) {
	var err error
	c.auditTrailInit.Do(func() {
		c.auditTrail, err = c.initAuditTrail()
		if err != nil {
			c.initErrors["auditTrail"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditTrail"]; exists {
		return nil, storedErr
	}
	return c.auditTrail, nil
}

// SecretResolver returns the credential resolver, loaded from its sources.
func (c *Container) SecretResolver() (*secrets.Resolver, error) {
	var err error
	c.secretResolverInit.Do(func() {
		c.secretResolver, err = c.initSecretResolver()
		if err != nil {
			c.initErrors["secretResolver"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretResolver"]; exists {
		return nil, storedErr
	}
	return c.secretResolver, nil
}

// Factory returns the provisioning factory.
func (c *Container) Factory() (*provision.Factory, error) {
	var err error
	c.factoryInit.Do(func() {
		c.factory, err = c.initFactory()
		if err != nil {
			c.initErrors["factory"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["factory"]; exists {
		return nil, storedErr
	}
	return c.factory, nil
}

// HTTPServer returns the API server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// The trail goes last so the other components can still record entries
	// while they wind down.
	if c.auditTrail != nil {
		c.auditTrail.Shutdown()
	}

	if c.secretResolver != nil {
		c.secretResolver.ClearSecrets()
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initAuditTrail creates the audit trail with the configured rotation and
// retention bounds.
func (c *Container) initAuditTrail() (*audit.Trail, error) {
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for audit trail: %w", err)
	}

	trail := audit.NewTrail(audit.Config{
		Dir:             c.config.AuditLogDir,
		MaxFileSize:     int64(c.config.AuditMaxFileSizeMB) * 1024 * 1024,
		Retention:       time.Duration(c.config.AuditRetentionDays) * 24 * time.Hour,
		FlushInterval:   c.config.AuditFlushInterval,
		CleanupInterval: c.config.AuditCleanupInterval,
	}, c.Logger(), businessMetrics)

	return trail, nil
}

// initSecretResolver creates the credential resolver and loads its sources.
func (c *Container) initSecretResolver() (*secrets.Resolver, error) {
	trail, err := c.AuditTrail()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail for secret resolver: %w", err)
	}

	resolver := secrets.NewResolver(c.CryptoEngine(), trail, c.Logger(), c.config.SecretsFilePath)
	if err := resolver.Load(); err != nil {
		return nil, fmt.Errorf("failed to load secret sources: %w", err)
	}
	return resolver, nil
}

// initFactory creates the provisioning factory with a local executor.
func (c *Container) initFactory() (*provision.Factory, error) {
	trail, err := c.AuditTrail()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail for factory: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for factory: %w", err)
	}

	factory := provision.NewFactory(
		provision.FactoryConfig{
			MaxConcurrentHosts: c.config.ProvisionMaxConcurrentHosts,
			CommandsPerSec:     c.config.ProvisionCommandsPerSec,
			CommandBurst:       c.config.ProvisionCommandBurst,
		},
		provision.NewLocalExecutor(),
		trail,
		c.Logger(),
		businessMetrics,
	)
	return factory, nil
}

// initHTTPServer creates the API server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	trail, err := c.AuditTrail()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail for http server: %w", err)
	}

	return http.NewServer(c.config, c.Logger(), trail), nil
}

// initMetricsServer creates the metrics server.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		provider,
	), nil
}
