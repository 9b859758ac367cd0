package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/mailforge/mailforge/internal/errors"
)

// opensslEnddateFormat is the layout of the notAfter value printed by
// `openssl x509 -enddate`, e.g. "Sep  4 12:00:00 2026 GMT".
const opensslEnddateFormat = "Jan  2 15:04:05 2006 MST"

// CertExpiryCheck verifies that a TLS certificate on the host is not expired
// and not within the renewal window. The check reads the certificate with
// openssl and parses the notAfter date; it never blocks the host's other steps
// from having run, so it is typically placed last in a plan.
type CertExpiryCheck struct {
	CertPath string

	// RenewBefore is how far before expiry the check starts failing.
	// Defaults to 14 days.
	RenewBefore time.Duration

	// now is swapped in tests.
	now func() time.Time
}

// Name implements Step.
func (c *CertExpiryCheck) Name() string { return "check_cert_expiry" }

// Run reads the certificate expiry and fails when it is past or inside the
// renewal window.
func (c *CertExpiryCheck) Run(ctx context.Context, host string, exec Executor) error {
	result, err := exec.Execute(ctx, host, "openssl", "x509", "-enddate", "-noout", "-in", c.CertPath)
	if err != nil {
		return stepError(c.Name(), host, err)
	}
	if !result.Success() {
		return stepError(c.Name(), host,
			fmt.Errorf("failed to read certificate %s, openssl exited with code %d", c.CertPath, result.ExitCode))
	}

	notAfter, err := ParseCertEnddate(result.Stdout)
	if err != nil {
		return stepError(c.Name(), host, err)
	}

	nowFn := c.now
	if nowFn == nil {
		nowFn = time.Now
	}
	renewBefore := c.RenewBefore
	if renewBefore == 0 {
		renewBefore = 14 * 24 * time.Hour
	}

	now := nowFn()
	if !now.Before(notAfter) {
		return stepError(c.Name(), host,
			fmt.Errorf("certificate %s expired at %s", c.CertPath, notAfter.UTC().Format(time.RFC3339)))
	}
	if now.Add(renewBefore).After(notAfter) {
		return stepError(c.Name(), host,
			fmt.Errorf("certificate %s expires at %s, inside the renewal window",
				c.CertPath, notAfter.UTC().Format(time.RFC3339)))
	}
	return nil
}

// ParseCertEnddate extracts the expiry time from `openssl x509 -enddate`
// output of the form "notAfter=Sep  4 12:00:00 2026 GMT".
func ParseCertEnddate(output string) (time.Time, error) {
	_, value, found := strings.Cut(strings.TrimSpace(output), "notAfter=")
	if !found {
		return time.Time{}, apperrors.Wrap(apperrors.ErrInvalidInput,
			"certificate end date not found in openssl output")
	}
	notAfter, err := time.Parse(opensslEnddateFormat, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrInvalidInput,
			"failed to parse certificate end date")
	}
	return notAfter, nil
}

// SELinuxCheck verifies the SELinux enforcement mode on the host.
type SELinuxCheck struct {
	// RequiredMode is the mode getenforce must report. Defaults to "Enforcing".
	RequiredMode string
}

// Name implements Step.
func (c *SELinuxCheck) Name() string { return "check_selinux" }

// Run queries getenforce and compares against the required mode.
func (c *SELinuxCheck) Run(ctx context.Context, host string, exec Executor) error {
	result, err := exec.Execute(ctx, host, "getenforce")
	if err != nil {
		return stepError(c.Name(), host, err)
	}
	if !result.Success() {
		return stepError(c.Name(), host,
			fmt.Errorf("getenforce exited with code %d", result.ExitCode))
	}

	required := c.RequiredMode
	if required == "" {
		required = "Enforcing"
	}

	mode := strings.TrimSpace(result.Stdout)
	if !strings.EqualFold(mode, required) {
		return stepError(c.Name(), host,
			fmt.Errorf("selinux mode is %s, required %s", mode, required))
	}
	return nil
}
