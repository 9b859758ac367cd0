package provision

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mailforge/mailforge/internal/errors"
)

// fakeExecutor records calls and replays scripted results, keyed by command name.
type fakeExecutor struct {
	mu       sync.Mutex
	commands [][]string
	uploads  map[string][]byte
	modes    map[string]os.FileMode
	results  map[string]*CommandResult
	execErr  error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		uploads: make(map[string][]byte),
		modes:   make(map[string]os.FileMode),
		results: make(map[string]*CommandResult),
	}
}

func (f *fakeExecutor) Execute(_ context.Context, _, command string, args ...string) (*CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, append([]string{command}, args...))
	if f.execErr != nil {
		return nil, f.execErr
	}
	if result, ok := f.results[command]; ok {
		return result, nil
	}
	return &CommandResult{Command: command, ExitCode: 0}, nil
}

func (f *fakeExecutor) UploadFile(_ context.Context, _, path string, content []byte, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[path] = content
	f.modes[path] = mode
	return nil
}

func (f *fakeExecutor) AppendFile(_ context.Context, _, path string, content []byte, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[path] = append(f.uploads[path], content...)
	f.modes[path] = mode
	return nil
}

func TestInstallPackagesStep(t *testing.T) {
	t.Run("installs via dnf", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &InstallPackagesStep{Packages: []string{"postfix", "dovecot"}}

		require.NoError(t, step.Run(context.Background(), "mail01", exec))

		require.Len(t, exec.commands, 1)
		assert.Equal(t, []string{"dnf", "install", "-y", "postfix", "dovecot"}, exec.commands[0])
	})

	t.Run("empty package list is invalid", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &InstallPackagesStep{}

		err := step.Run(context.Background(), "mail01", exec)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Empty(t, exec.commands)
	})

	t.Run("shell metacharacters in package names are rejected", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &InstallPackagesStep{Packages: []string{"postfix; rm -rf /"}}

		err := step.Run(context.Background(), "mail01", exec)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Empty(t, exec.commands)
	})

	t.Run("non-zero exit is a failure naming step and host", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.results["dnf"] = &CommandResult{Command: "dnf", ExitCode: 1}
		step := &InstallPackagesStep{Packages: []string{"postfix"}}

		err := step.Run(context.Background(), "mail01", exec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "install_packages")
		assert.Contains(t, err.Error(), "mail01")
	})
}

func TestUploadConfigStep(t *testing.T) {
	t.Run("uploads with default mode", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &UploadConfigStep{Path: "/etc/postfix/main.cf", Content: []byte("myhostname = mail01")}

		require.NoError(t, step.Run(context.Background(), "mail01", exec))
		assert.Equal(t, []byte("myhostname = mail01"), exec.uploads["/etc/postfix/main.cf"])
		assert.Equal(t, os.FileMode(0o644), exec.modes["/etc/postfix/main.cf"])
	})

	t.Run("relative path is rejected", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &UploadConfigStep{Path: "etc/postfix/main.cf"}

		err := step.Run(context.Background(), "mail01", exec)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("traversal segments are rejected", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &UploadConfigStep{Path: "/etc/../etc/shadow"}

		err := step.Run(context.Background(), "mail01", exec)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestEnableServiceStep(t *testing.T) {
	t.Run("enables the unit", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &EnableServiceStep{Service: "postfix"}

		require.NoError(t, step.Run(context.Background(), "mail01", exec))
		require.Len(t, exec.commands, 1)
		assert.Equal(t, []string{"systemctl", "enable", "--now", "postfix"}, exec.commands[0])
	})

	t.Run("blank unit is rejected", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &EnableServiceStep{Service: "  "}

		err := step.Run(context.Background(), "mail01", exec)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestCreateMailAccountStep(t *testing.T) {
	t.Run("writes a hashed passwd entry, never the plaintext", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &CreateMailAccountStep{
			Address:  "alice@example.com",
			Password: "Str0ngPassword!x",
		}

		require.NoError(t, step.Run(context.Background(), "mail01", exec))

		entry := string(exec.uploads["/etc/dovecot/users"])
		assert.True(t, strings.HasPrefix(entry, "alice@example.com:{ARGON2ID}"))
		assert.NotContains(t, entry, "Str0ngPassword!x")
		assert.True(t, strings.HasSuffix(entry, "\n"))
		assert.Equal(t, os.FileMode(0o600), exec.modes["/etc/dovecot/users"])
	})

	t.Run("custom passwd file path", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &CreateMailAccountStep{
			Address:        "bob@example.com",
			Password:       "An0therStrongPwd",
			PasswdFilePath: "/etc/dovecot/extra-users",
		}

		require.NoError(t, step.Run(context.Background(), "mail01", exec))
		assert.Contains(t, exec.uploads, "/etc/dovecot/extra-users")
	})

	t.Run("two accounts on the same passwd file keep both entries", func(t *testing.T) {
		exec := newFakeExecutor()
		alice := &CreateMailAccountStep{Address: "alice@example.com", Password: "Str0ngPassword!x"}
		bob := &CreateMailAccountStep{Address: "bob@example.com", Password: "An0therStrongPwd"}

		require.NoError(t, alice.Run(context.Background(), "mail01", exec))
		require.NoError(t, bob.Run(context.Background(), "mail01", exec))

		content := string(exec.uploads["/etc/dovecot/users"])
		assert.Contains(t, content, "alice@example.com:{ARGON2ID}")
		assert.Contains(t, content, "bob@example.com:{ARGON2ID}")
	})

	t.Run("one step value serves many hosts concurrently", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &CreateMailAccountStep{Address: "alice@example.com", Password: "Str0ngPassword!x"}

		const hosts = 4
		errs := make([]error, hosts)
		var wg sync.WaitGroup
		for i := 0; i < hosts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = step.Run(context.Background(), fmt.Sprintf("mail%02d", i), exec)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("invalid address is rejected", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &CreateMailAccountStep{Address: "not-an-email", Password: "Str0ngPassword!x"}

		err := step.Run(context.Background(), "mail01", exec)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Empty(t, exec.uploads)
	})

	t.Run("weak password is rejected", func(t *testing.T) {
		exec := newFakeExecutor()
		step := &CreateMailAccountStep{Address: "alice@example.com", Password: "weak"}

		err := step.Run(context.Background(), "mail01", exec)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.NotContains(t, err.Error(), "weak")
		assert.Empty(t, exec.uploads)
	})
}
