package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mailforge/mailforge/internal/audit"
	apperrors "github.com/mailforge/mailforge/internal/errors"
	"github.com/mailforge/mailforge/internal/metrics"
	appvalidation "github.com/mailforge/mailforge/internal/validation"
)

// FactoryConfig bounds a factory run.
type FactoryConfig struct {
	// MaxConcurrentHosts caps how many hosts are provisioned in parallel.
	MaxConcurrentHosts int

	// CommandsPerSec and CommandBurst throttle command execution across all
	// hosts of a run.
	CommandsPerSec float64
	CommandBurst   int
}

// withDefaults fills zero fields with the documented defaults.
func (c FactoryConfig) withDefaults() FactoryConfig {
	if c.MaxConcurrentHosts <= 0 {
		c.MaxConcurrentHosts = 4
	}
	if c.CommandsPerSec <= 0 {
		c.CommandsPerSec = 10.0
	}
	if c.CommandBurst <= 0 {
		c.CommandBurst = 20
	}
	return c
}

// HostReport is the outcome of one host's plan.
type HostReport struct {
	Host           string        `json:"host"`
	CompletedSteps []string      `json:"completed_steps"`
	FailedStep     string        `json:"failed_step,omitempty"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Report is the outcome of a full factory run.
type Report struct {
	RunID   string       `json:"run_id"`
	Hosts   []HostReport `json:"hosts"`
	Started time.Time    `json:"started"`
}

// Failed reports whether any host failed its plan.
func (r *Report) Failed() bool {
	for _, host := range r.Hosts {
		if host.Error != "" {
			return true
		}
	}
	return false
}

// Factory runs provisioning plans against hosts. Host fan-out is bounded by
// MaxConcurrentHosts; command execution across all hosts shares one rate
// limiter so a large run cannot saturate the targets.
type Factory struct {
	cfg      FactoryConfig
	executor Executor
	trail    *audit.Trail
	logger   *slog.Logger
	metrics  metrics.BusinessMetrics
	limiter  *rate.Limiter
}

// NewFactory creates a Factory. A nil metrics falls back to the no-op
// implementation; the trail may be nil in tests.
func NewFactory(
	cfg FactoryConfig,
	executor Executor,
	trail *audit.Trail,
	logger *slog.Logger,
	businessMetrics metrics.BusinessMetrics,
) *Factory {
	cfg = cfg.withDefaults()
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Factory{
		cfg:      cfg,
		executor: executor,
		trail:    trail,
		logger:   logger,
		metrics:  businessMetrics,
		limiter:  rate.NewLimiter(rate.Limit(cfg.CommandsPerSec), cfg.CommandBurst),
	}
}

// Provision runs the steps in order against every host. Hosts run in parallel
// up to the configured limit; within a host the steps run sequentially and the
// first failure aborts that host's remaining steps without affecting the
// others. The returned report covers every host even when some failed.
func (f *Factory) Provision(ctx context.Context, hosts []string, steps []Step) (*Report, error) {
	if len(hosts) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "host list must not be empty")
	}
	if len(steps) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "step list must not be empty")
	}
	for _, host := range hosts {
		if err := validation.Validate(host, appvalidation.NotBlank, appvalidation.Hostname); err != nil {
			return nil, appvalidation.WrapValidationError(
				fmt.Errorf("invalid host %q: %w", host, err),
			)
		}
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Hosts:   make([]HostReport, len(hosts)),
		Started: time.Now().UTC(),
	}

	f.logger.Info("provisioning run started",
		slog.String("run_id", report.RunID),
		slog.Int("hosts", len(hosts)),
		slog.Int("steps", len(steps)),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.cfg.MaxConcurrentHosts)

	for i, host := range hosts {
		group.Go(func() error {
			report.Hosts[i] = f.provisionHost(groupCtx, report.RunID, host, steps)
			return nil
		})
	}

	// Worker errors land in the per-host reports, so Wait only observes
	// context cancellation.
	if err := group.Wait(); err != nil {
		return report, err
	}

	status := "success"
	if report.Failed() {
		status = "error"
	}
	f.metrics.RecordOperation(ctx, "provision", "run", status)
	f.logger.Info("provisioning run finished",
		slog.String("run_id", report.RunID),
		slog.String("status", status),
	)
	return report, nil
}

// provisionHost runs the plan against one host and returns its report.
func (f *Factory) provisionHost(ctx context.Context, runID, host string, steps []Step) HostReport {
	start := time.Now()
	hostReport := HostReport{Host: host}

	f.auditConnection(audit.ActionConnect, host, runID, audit.ResultSuccess)

	exec := &auditedExecutor{
		next:    f.executor,
		trail:   f.trail,
		limiter: f.limiter,
		runID:   runID,
	}

	for _, step := range steps {
		stepStart := time.Now()
		err := step.Run(ctx, host, exec)
		status := "success"
		if err != nil {
			status = "error"
		}
		f.metrics.RecordOperation(ctx, "provision", step.Name(), status)
		f.metrics.RecordDuration(ctx, "provision", step.Name(), time.Since(stepStart), status)

		if err != nil {
			hostReport.FailedStep = step.Name()
			hostReport.Error = err.Error()
			f.logger.Error("provisioning step failed",
				slog.String("run_id", runID),
				slog.String("host", host),
				slog.String("step", step.Name()),
				slog.Any("error", err),
			)
			break
		}
		hostReport.CompletedSteps = append(hostReport.CompletedSteps, step.Name())
	}

	result := audit.ResultSuccess
	if hostReport.Error != "" {
		result = audit.ResultFailure
	}
	f.auditConnection(audit.ActionDisconnect, host, runID, result)

	hostReport.Duration = time.Since(start)
	return hostReport
}

// auditConnection records host session boundaries when a trail is attached.
func (f *Factory) auditConnection(action audit.Action, host, runID string, result audit.Result) {
	if f.trail == nil {
		return
	}
	_ = f.trail.LogConnection(action, host, fmt.Sprintf("provisioning run %s", runID), result)
}

// auditedExecutor decorates an Executor with the shared rate limiter and an
// audit record per executed command.
type auditedExecutor struct {
	next    Executor
	trail   *audit.Trail
	limiter *rate.Limiter
	runID   string
}

// Execute waits for a rate token, delegates, and records the command outcome.
func (e *auditedExecutor) Execute(
	ctx context.Context,
	host, command string,
	args ...string,
) (*CommandResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait interrupted: %w", err)
	}

	result, err := e.next.Execute(ctx, host, command, args...)

	auditResult := audit.ResultSuccess
	if err != nil || (result != nil && !result.Success()) {
		auditResult = audit.ResultFailure
	}
	e.audit(command, host, auditResult)
	return result, err
}

// UploadFile waits for a rate token, delegates, and records the upload outcome.
func (e *auditedExecutor) UploadFile(
	ctx context.Context,
	host, path string,
	content []byte,
	mode os.FileMode,
) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait interrupted: %w", err)
	}

	err := e.next.UploadFile(ctx, host, path, content, mode)

	auditResult := audit.ResultSuccess
	if err != nil {
		auditResult = audit.ResultFailure
	}
	if e.trail != nil {
		_ = e.trail.LogFileAccess("factory", path, audit.ActionCreate, auditResult)
	}
	return err
}

// AppendFile waits for a rate token, delegates, and records the append outcome.
func (e *auditedExecutor) AppendFile(
	ctx context.Context,
	host, path string,
	content []byte,
	mode os.FileMode,
) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait interrupted: %w", err)
	}

	err := e.next.AppendFile(ctx, host, path, content, mode)

	auditResult := audit.ResultSuccess
	if err != nil {
		auditResult = audit.ResultFailure
	}
	if e.trail != nil {
		_ = e.trail.LogFileAccess("factory", path, audit.ActionModify, auditResult)
	}
	return err
}

// audit records one executed command. Only the command name is logged; the
// arguments may carry sensitive material and stay out of the trail.
func (e *auditedExecutor) audit(command, host string, result audit.Result) {
	if e.trail == nil {
		return
	}
	_ = e.trail.LogCommandExecution("factory", command, result, map[string]string{
		"host":   host,
		"run_id": e.runID,
	})
}
