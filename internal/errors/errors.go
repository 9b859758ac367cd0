// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors are shared across the crypto,
// secrets, audit and provisioning modules and mapped to HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuthenticationFailed indicates AEAD tag verification failed on decrypt.
	// Deliberately a single category: a wrong passphrase and tampered ciphertext
	// are indistinguishable to the caller.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrSecretMissing indicates no configured source supplied a required credential.
	// Messages wrapping it reference the credential key, never its value.
	ErrSecretMissing = errors.New("required secret missing")

	// ErrUnavailable indicates a subsystem has shut down or refused to start.
	ErrUnavailable = errors.New("unavailable")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
