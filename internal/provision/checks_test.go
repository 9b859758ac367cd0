package provision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mailforge/mailforge/internal/errors"
)

func TestParseCertEnddate(t *testing.T) {
	t.Run("parses openssl output", func(t *testing.T) {
		notAfter, err := ParseCertEnddate("notAfter=Sep  4 12:00:00 2026 GMT\n")
		require.NoError(t, err)
		assert.Equal(t, 2026, notAfter.Year())
		assert.Equal(t, time.September, notAfter.Month())
		assert.Equal(t, 4, notAfter.Day())
	})

	t.Run("missing marker is invalid input", func(t *testing.T) {
		_, err := ParseCertEnddate("unexpected output")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("unparseable date is invalid input", func(t *testing.T) {
		_, err := ParseCertEnddate("notAfter=tomorrow")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestCertExpiryCheck(t *testing.T) {
	enddate := func(at time.Time) *CommandResult {
		return &CommandResult{
			Command: "openssl",
			Stdout:  "notAfter=" + at.UTC().Format("Jan  2 15:04:05 2006 MST") + "\n",
		}
	}
	now := time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC)

	t.Run("valid certificate outside the renewal window", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["openssl"] = enddate(now.Add(60 * 24 * time.Hour))
		check := &CertExpiryCheck{CertPath: "/etc/pki/tls/certs/mail.pem", now: func() time.Time { return now }}

		assert.NoError(t, check.Run(context.Background(), "mail01", exec))
	})

	t.Run("expired certificate fails", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["openssl"] = enddate(now.Add(-24 * time.Hour))
		check := &CertExpiryCheck{CertPath: "/etc/pki/tls/certs/mail.pem", now: func() time.Time { return now }}

		err := check.Run(context.Background(), "mail01", exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("certificate inside the renewal window fails", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["openssl"] = enddate(now.Add(3 * 24 * time.Hour))
		check := &CertExpiryCheck{CertPath: "/etc/pki/tls/certs/mail.pem", now: func() time.Time { return now }}

		err := check.Run(context.Background(), "mail01", exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "renewal window")
	})

	t.Run("custom renewal window", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["openssl"] = enddate(now.Add(3 * 24 * time.Hour))
		check := &CertExpiryCheck{
			CertPath:    "/etc/pki/tls/certs/mail.pem",
			RenewBefore: 24 * time.Hour,
			now:         func() time.Time { return now },
		}

		assert.NoError(t, check.Run(context.Background(), "mail01", exec))
	})

	t.Run("unreadable certificate fails", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["openssl"] = &CommandResult{Command: "openssl", ExitCode: 1}
		check := &CertExpiryCheck{CertPath: "/missing.pem", now: func() time.Time { return now }}

		err := check.Run(context.Background(), "mail01", exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/missing.pem")
	})
}

func TestSELinuxCheck(t *testing.T) {
	t.Run("enforcing passes by default", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["getenforce"] = &CommandResult{Command: "getenforce", Stdout: "Enforcing\n"}

		assert.NoError(t, (&SELinuxCheck{}).Run(context.Background(), "mail01", exec))
	})

	t.Run("permissive fails by default", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["getenforce"] = &CommandResult{Command: "getenforce", Stdout: "Permissive\n"}

		err := (&SELinuxCheck{}).Run(context.Background(), "mail01", exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Permissive")
	})

	t.Run("custom required mode", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["getenforce"] = &CommandResult{Command: "getenforce", Stdout: "Permissive\n"}

		assert.NoError(t, (&SELinuxCheck{RequiredMode: "Permissive"}).Run(context.Background(), "mail01", exec))
	})

	t.Run("getenforce failure is reported", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["getenforce"] = &CommandResult{Command: "getenforce", ExitCode: 127}

		err := (&SELinuxCheck{}).Run(context.Background(), "mail01", exec)
		assert.Error(t, err)
	})
}
