package provision

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/allisson/go-pwdhash"
	validation "github.com/jellydator/validation"

	apperrors "github.com/mailforge/mailforge/internal/errors"
	appvalidation "github.com/mailforge/mailforge/internal/validation"
)

// Step is one unit of host setup executed by the factory. Steps are stateless
// and safe to run against multiple hosts concurrently.
type Step interface {
	// Name identifies the step in audit entries and run reports.
	Name() string

	// Run applies the step to host through exec. A returned error aborts the
	// remaining steps for that host.
	Run(ctx context.Context, host string, exec Executor) error
}

// stepError wraps a step failure with the step and host it happened on.
func stepError(step, host string, err error) error {
	return fmt.Errorf("step %s failed on host %s: %w", step, host, err)
}

// InstallPackagesStep installs packages through the system package manager.
type InstallPackagesStep struct {
	Packages []string
}

// Name implements Step.
func (s *InstallPackagesStep) Name() string { return "install_packages" }

// Validate checks the package list for shell-unsafe names.
func (s *InstallPackagesStep) Validate() error {
	if len(s.Packages) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "package list must not be empty")
	}
	for _, pkg := range s.Packages {
		if err := validation.Validate(pkg, appvalidation.NotBlank, appvalidation.ShellSafe); err != nil {
			return appvalidation.WrapValidationError(
				fmt.Errorf("invalid package name %q: %w", pkg, err),
			)
		}
	}
	return nil
}

// Run installs the packages with dnf.
func (s *InstallPackagesStep) Run(ctx context.Context, host string, exec Executor) error {
	if err := s.Validate(); err != nil {
		return stepError(s.Name(), host, err)
	}
	args := append([]string{"install", "-y"}, s.Packages...)
	result, err := exec.Execute(ctx, host, "dnf", args...)
	if err != nil {
		return stepError(s.Name(), host, err)
	}
	if !result.Success() {
		return stepError(s.Name(), host,
			fmt.Errorf("dnf exited with code %d", result.ExitCode))
	}
	return nil
}

// UploadConfigStep places a configuration file on the host.
type UploadConfigStep struct {
	Path    string
	Content []byte
	Mode    os.FileMode
}

// Name implements Step.
func (s *UploadConfigStep) Name() string { return "upload_config" }

// Run validates the destination path and uploads the file.
func (s *UploadConfigStep) Run(ctx context.Context, host string, exec Executor) error {
	if err := validation.Validate(s.Path, appvalidation.NotBlank, appvalidation.AbsolutePath); err != nil {
		return stepError(s.Name(), host, appvalidation.WrapValidationError(err))
	}
	mode := s.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := exec.UploadFile(ctx, host, s.Path, s.Content, mode); err != nil {
		return stepError(s.Name(), host, err)
	}
	return nil
}

// EnableServiceStep enables and starts a systemd unit.
type EnableServiceStep struct {
	Service string
}

// Name implements Step.
func (s *EnableServiceStep) Name() string { return "enable_service" }

// Run enables the unit with systemctl.
func (s *EnableServiceStep) Run(ctx context.Context, host string, exec Executor) error {
	if err := validation.Validate(s.Service, appvalidation.NotBlank, appvalidation.ShellSafe); err != nil {
		return stepError(s.Name(), host, appvalidation.WrapValidationError(err))
	}
	result, err := exec.Execute(ctx, host, "systemctl", "enable", "--now", s.Service)
	if err != nil {
		return stepError(s.Name(), host, err)
	}
	if !result.Success() {
		return stepError(s.Name(), host,
			fmt.Errorf("systemctl exited with code %d for unit %s", result.ExitCode, s.Service))
	}
	return nil
}

// CreateMailAccountStep provisions a mail account on the host. The password is
// hashed with Argon2id locally; only the hash ever leaves the factory.
type CreateMailAccountStep struct {
	Address  string
	Password string

	// PasswdFilePath is the dovecot passwd-file the account entry is appended
	// to. Defaults to /etc/dovecot/users.
	PasswdFilePath string
}

// Name implements Step.
func (s *CreateMailAccountStep) Name() string { return "create_mail_account" }

// Validate checks the address format and the password strength policy.
func (s *CreateMailAccountStep) Validate() error {
	err := validation.Errors{
		"address": validation.Validate(s.Address, validation.Required, appvalidation.Email),
		"password": validation.Validate(s.Password, validation.Required, appvalidation.PasswordStrength{
			MinLength:     12,
			RequireUpper:  true,
			RequireLower:  true,
			RequireNumber: true,
		}),
	}.Filter()
	return appvalidation.WrapValidationError(err)
}

// Run hashes the password and appends the passwd-file entry on the host.
func (s *CreateMailAccountStep) Run(ctx context.Context, host string, exec Executor) error {
	if err := s.Validate(); err != nil {
		return stepError(s.Name(), host, err)
	}

	// One step value runs against many hosts at once; the hasher is per run,
	// not per step.
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return stepError(s.Name(), host,
			apperrors.Wrap(err, "failed to create password hasher"))
	}

	hash, err := hasher.Hash([]byte(s.Password))
	if err != nil {
		return stepError(s.Name(), host,
			apperrors.Wrap(err, fmt.Sprintf("failed to hash password for account %s", s.Address)))
	}

	path := s.PasswdFilePath
	if path == "" {
		path = "/etc/dovecot/users"
	}

	entry := fmt.Sprintf("%s:{ARGON2ID}%s\n", s.Address, strings.TrimSpace(hash))
	if err := exec.AppendFile(ctx, host, path, []byte(entry), 0o600); err != nil {
		return stepError(s.Name(), host, err)
	}
	return nil
}
