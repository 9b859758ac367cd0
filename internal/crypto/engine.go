// Package crypto implements authenticated encryption of secret values under a
// caller-supplied passphrase.
//
// Values are protected with AES-256-GCM; the 256-bit key is derived from the
// passphrase with PBKDF2-SHA256 and a fresh random salt on every encryption,
// so the same plaintext never produces the same ciphertext twice. The at-rest
// form is three base64 fields joined by ':':
//
//	base64(salt) : base64(nonce) : base64(ciphertext||tag)
//
// Malformed input (wrong field count, bad base64, wrong salt or nonce length)
// is reported as errors.ErrInvalidInput. A failed tag verification is reported
// as errors.ErrAuthenticationFailed regardless of whether the cause was a
// wrong passphrase or a tampered ciphertext, so the error channel cannot be
// used as a key-validity oracle.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	apperrors "github.com/mailforge/mailforge/internal/errors"
)

const (
	// SaltSize is the size of the random key-derivation salt in bytes.
	SaltSize = 16
	// NonceSize is the size of the AES-GCM nonce in bytes.
	NonceSize = 12
	// KeySize is the size of the derived AES-256 key in bytes.
	KeySize = 32
	// TagSize is the size of the GCM authentication tag in bytes.
	TagSize = 16
	// PBKDF2Iterations is the PBKDF2-SHA256 iteration count. Deliberately slow;
	// callers encrypting in a hot path pay this cost per call.
	PBKDF2Iterations = 65536
	// MinPassphraseLength is the minimum accepted passphrase length.
	MinPassphraseLength = 8

	// serializedFields is the number of colon-separated fields in the at-rest form.
	serializedFields = 3
)

// Engine performs passphrase-based authenticated encryption and decryption.
// It holds no state between calls and is safe for unbounded concurrent use.
type Engine struct{}

// NewEngine creates a new Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Encrypt encrypts plaintext under passphrase and returns the serialized payload.
//
// Plaintext must be non-empty and the passphrase at least MinPassphraseLength
// characters; violations return errors.ErrInvalidInput. Nothing is persisted
// or logged; the only side effect is the returned value.
func (e *Engine) Encrypt(plaintext, passphrase string) (string, error) {
	if plaintext == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "plaintext must not be empty")
	}
	if err := validatePassphrase(passphrase); err != nil {
		return "", err
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)

	enc := base64.StdEncoding
	return enc.EncodeToString(salt) + ":" + enc.EncodeToString(nonce) + ":" + enc.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, returning the original plaintext.
//
// Format violations (field count, base64, decoded lengths) return
// errors.ErrInvalidInput; a tag-verification failure returns
// errors.ErrAuthenticationFailed with no further detail.
func (e *Engine) Decrypt(serialized, passphrase string) (string, error) {
	if err := validatePassphrase(passphrase); err != nil {
		return "", err
	}

	salt, nonce, ciphertext, err := parsePayload(serialized)
	if err != nil {
		return "", err
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// Wrong passphrase and tampered ciphertext are indistinguishable here.
		return "", apperrors.ErrAuthenticationFailed
	}

	return string(plaintext), nil
}

// validatePassphrase checks the passphrase preconditions shared by both operations.
func validatePassphrase(passphrase string) error {
	if passphrase == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "passphrase must not be empty")
	}
	if len(passphrase) < MinPassphraseLength {
		return apperrors.Wrap(
			apperrors.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", MinPassphraseLength),
		)
	}
	return nil
}

// parsePayload splits and decodes the serialized form, enforcing field count
// and decoded lengths before any key derivation happens.
func parsePayload(serialized string) (salt, nonce, ciphertext []byte, err error) {
	parts := strings.Split(serialized, ":")
	if len(parts) != serializedFields {
		return nil, nil, nil, apperrors.Wrap(
			apperrors.ErrInvalidInput,
			fmt.Sprintf("encrypted value must have %d fields, got %d", serializedFields, len(parts)),
		)
	}

	enc := base64.StdEncoding
	salt, err = enc.DecodeString(parts[0])
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.ErrInvalidInput, "salt is not valid base64")
	}
	nonce, err = enc.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.ErrInvalidInput, "nonce is not valid base64")
	}
	ciphertext, err = enc.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.ErrInvalidInput, "ciphertext is not valid base64")
	}

	if len(salt) != SaltSize {
		return nil, nil, nil, apperrors.Wrap(
			apperrors.ErrInvalidInput,
			fmt.Sprintf("salt must be %d bytes, got %d", SaltSize, len(salt)),
		)
	}
	if len(nonce) != NonceSize {
		return nil, nil, nil, apperrors.Wrap(
			apperrors.ErrInvalidInput,
			fmt.Sprintf("nonce must be %d bytes, got %d", NonceSize, len(nonce)),
		)
	}
	if len(ciphertext) < TagSize {
		return nil, nil, nil, apperrors.Wrap(
			apperrors.ErrInvalidInput,
			fmt.Sprintf("ciphertext must be at least %d bytes, got %d", TagSize, len(ciphertext)),
		)
	}

	return salt, nonce, ciphertext, nil
}

// newAEAD derives the AES-256 key from passphrase and salt and builds the GCM cipher.
func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aead, nil
}

// zero overwrites key material so it does not linger in memory after use.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
