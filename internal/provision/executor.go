// Package provision orchestrates the hardening and mail-stack setup of target
// hosts. A Factory runs an ordered list of steps against each host through an
// Executor, records every privileged command on the audit trail, and bounds
// concurrency and command rate.
package provision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	apperrors "github.com/mailforge/mailforge/internal/errors"
)

// CommandResult captures the outcome of one executed command.
type CommandResult struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports whether the command exited zero.
func (r *CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Executor runs commands and places files on a target host. Implementations
// must honor context cancellation and must never echo credential material in
// returned errors.
type Executor interface {
	// Execute runs command with args on host and returns its result. A non-zero
	// exit is reported through CommandResult, not through the error; the error
	// covers failures to run the command at all.
	Execute(ctx context.Context, host, command string, args ...string) (*CommandResult, error)

	// UploadFile writes content to path on host with the given permissions,
	// replacing any existing file.
	UploadFile(ctx context.Context, host, path string, content []byte, mode os.FileMode) error

	// AppendFile appends content to path on host, creating the file with mode
	// when it does not exist. Existing content is preserved.
	AppendFile(ctx context.Context, host, path string, content []byte, mode os.FileMode) error
}

// LocalExecutor runs commands on the machine the factory itself runs on. Used
// when the factory provisions the host it is installed on, and in tests.
type LocalExecutor struct{}

// NewLocalExecutor creates a LocalExecutor.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

// Execute runs the command through os/exec, capturing stdout and stderr.
func (e *LocalExecutor) Execute(
	ctx context.Context,
	_ string,
	command string,
	args ...string,
) (*CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &CommandResult{
		Command:  command,
		Duration: time.Since(start),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !apperrors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute command %s: %w", command, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// UploadFile writes the file directly on the local filesystem.
func (e *LocalExecutor) UploadFile(
	_ context.Context,
	_ string,
	path string,
	content []byte,
	mode os.FileMode,
) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// AppendFile appends to the file on the local filesystem, creating it when absent.
func (e *LocalExecutor) AppendFile(
	_ context.Context,
	_ string,
	path string,
	content []byte,
	mode os.FileMode,
) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		return fmt.Errorf("failed to append to file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", path, err)
	}
	return nil
}
