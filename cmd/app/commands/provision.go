package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailforge/mailforge/internal/app"
	"github.com/mailforge/mailforge/internal/config"
	"github.com/mailforge/mailforge/internal/provision"
)

// ProvisionOptions carries the provision command's flags.
type ProvisionOptions struct {
	Hosts       []string
	Packages    []string
	Services    []string
	MailAccount string
	CertPath    string
	SkipSELinux bool
	Format      string
}

// RunProvision builds a step plan from the options and runs it against the
// given hosts. The mail account password is resolved through the credential
// sources under the key "mail.account.password"; it is never passed as a flag.
func RunProvision(ctx context.Context, options ProvisionOptions) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	factory, err := container.Factory()
	if err != nil {
		return fmt.Errorf("failed to initialize factory: %w", err)
	}

	steps, err := buildSteps(container, options)
	if err != nil {
		return err
	}

	report, err := factory.Provision(ctx, options.Hosts, steps)
	if err != nil {
		return fmt.Errorf("provisioning run failed: %w", err)
	}

	if options.Format == "json" {
		outputJSON(report)
	} else {
		outputReportText(report)
	}

	if report.Failed() {
		return fmt.Errorf("provisioning run %s finished with failed hosts", report.RunID)
	}

	logger.Info("provisioning completed", slog.String("run_id", report.RunID))
	return nil
}

// buildSteps assembles the plan in its fixed order: packages, mail account,
// services, then the post-setup checks.
func buildSteps(container *app.Container, options ProvisionOptions) ([]provision.Step, error) {
	var steps []provision.Step

	if len(options.Packages) > 0 {
		steps = append(steps, &provision.InstallPackagesStep{Packages: options.Packages})
	}

	if options.MailAccount != "" {
		resolver, err := container.SecretResolver()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize secret resolver: %w", err)
		}
		password, err := resolver.RequireSecret("mail.account.password")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mail account password: %w", err)
		}
		steps = append(steps, &provision.CreateMailAccountStep{
			Address:  options.MailAccount,
			Password: password,
		})
	}

	for _, service := range options.Services {
		steps = append(steps, &provision.EnableServiceStep{Service: service})
	}

	if options.CertPath != "" {
		steps = append(steps, &provision.CertExpiryCheck{CertPath: options.CertPath})
	}
	if !options.SkipSELinux {
		steps = append(steps, &provision.SELinuxCheck{})
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("nothing to do: no packages, services, mail account or checks requested")
	}
	return steps, nil
}

// outputReportText outputs the run report in human-readable text format.
func outputReportText(report *provision.Report) {
	fmt.Printf("Run %s\n", report.RunID)
	for _, host := range report.Hosts {
		if host.Error != "" {
			fmt.Printf("  %s: FAILED at %s: %s\n", host.Host, host.FailedStep, host.Error)
			continue
		}
		fmt.Printf("  %s: ok (%d steps, %s)\n", host.Host, len(host.CompletedSteps), host.Duration.Round(time.Millisecond))
	}
}
