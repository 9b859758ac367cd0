// Package secrets resolves named credentials from a fixed, auditable
// precedence of sources: process environment first, then an optional external
// secrets file, then the value embedded in configuration (decrypted when it
// carries the encrypted prefix). Plaintext is never cached across calls and
// never appears in errors or logs; failures reference credential keys only.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/mailforge/mailforge/internal/audit"
	"github.com/mailforge/mailforge/internal/crypto"
	apperrors "github.com/mailforge/mailforge/internal/errors"
)

const (
	// EncryptedPrefix marks a configuration value as encrypted.
	EncryptedPrefix = "encrypted:"

	// EnvNamespacePrefix scopes the environment variables preloaded into the
	// in-memory secrets map at startup. MAILFORGE_SECRET_DATABASE_PASSWORD
	// becomes the credential key "database.password".
	EnvNamespacePrefix = "MAILFORGE_SECRET_"

	// MasterPassphraseVar names the environment variable supplying the
	// passphrase for embedded encrypted values. Its absence is fatal only when
	// an encrypted value actually needs decrypting.
	MasterPassphraseVar = "MAILFORGE_MASTER_PASSWORD"
)

// Source identifies where a resolved credential value came from.
type Source string

// Credential sources in precedence order.
const (
	SourceEnvironment     Source = "environment"
	SourceSecretsFile     Source = "secrets_file"
	SourceEncryptedConfig Source = "encrypted_config"
	SourcePlaintextConfig Source = "plaintext_config"
)

// wellKnownVars maps credential keys that may be overridden through dedicated
// environment variables, checked alongside the preloaded namespace.
var wellKnownVars = map[string]string{
	"database.password":        "MAILFORGE_DB_PASSWORD",
	"ssh.password":             "MAILFORGE_SSH_PASSWORD",
	"docker.registry.password": "MAILFORGE_DOCKER_PASSWORD",
}

// Resolver resolves credentials by precedence, decrypting embedded values
// through the crypto engine. Safe for concurrent use; the in-memory maps are
// read-mostly after Load and guarded against concurrent ClearSecrets.
type Resolver struct {
	engine *crypto.Engine
	trail  *audit.Trail
	logger *slog.Logger

	// secretsFilePath is the optional key=value file loaded once by Load.
	secretsFilePath string

	mu       sync.RWMutex
	envStore map[string]string
	fileSec  map[string]string
}

// NewResolver creates a Resolver. The trail may be nil when audit logging is
// not wanted (tests); secretsFilePath may be empty.
func NewResolver(engine *crypto.Engine, trail *audit.Trail, logger *slog.Logger, secretsFilePath string) *Resolver {
	return &Resolver{
		engine:          engine,
		trail:           trail,
		logger:          logger,
		secretsFilePath: secretsFilePath,
		envStore:        make(map[string]string),
		fileSec:         make(map[string]string),
	}
}

// Load populates the in-memory maps from the environment namespace and the
// optional secrets file. A missing file is non-fatal; the resolver continues
// with the remaining sources. Call once at startup, or again after ClearSecrets.
func (r *Resolver) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.envStore = make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvNamespacePrefix) {
			continue
		}
		r.envStore[envSuffixToKey(strings.TrimPrefix(name, EnvNamespacePrefix))] = value
	}

	r.fileSec = make(map[string]string)
	if r.secretsFilePath == "" {
		return nil
	}
	entries, err := godotenv.Read(r.secretsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn("secrets file not found, continuing with other sources",
				slog.String("path", r.secretsFilePath))
			return nil
		}
		return fmt.Errorf("failed to load secrets file %s: %w", r.secretsFilePath, err)
	}
	r.fileSec = entries
	return nil
}

// IsEncrypted reports whether a configuration value carries the encrypted prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// Resolve returns the plaintext for key, consulting sources in precedence
// order: environment (namespace map and well-known overrides), secrets file,
// then configValue. An encrypted configValue is decrypted under the master
// passphrase; a plaintext configValue is accepted with a warning. When no
// source supplies the value, the error names the key and wraps
// errors.ErrSecretMissing.
func (r *Resolver) Resolve(key, configValue string) (string, error) {
	value, _, err := r.ResolveWithSource(key, configValue)
	return value, err
}

// ResolveWithSource is Resolve plus the source the value came from.
func (r *Resolver) ResolveWithSource(key, configValue string) (string, Source, error) {
	if value, ok := r.lookup(key); ok {
		return value, SourceEnvironment, nil
	}
	if value, ok := r.lookupFile(key); ok {
		return value, SourceSecretsFile, nil
	}

	if configValue != "" {
		if IsEncrypted(configValue) {
			plaintext, err := r.decryptConfigValue(key, configValue)
			if err != nil {
				return "", "", err
			}
			return plaintext, SourceEncryptedConfig, nil
		}
		r.logger.Warn("credential supplied as plaintext in configuration, consider encrypting it",
			slog.String("key", key))
		return configValue, SourcePlaintextConfig, nil
	}

	return "", "", apperrors.Wrap(apperrors.ErrSecretMissing, fmt.Sprintf("credential %q", key))
}

// RequireSecret resolves key from the environment and secrets-file sources
// only, failing loudly when absent. Used for secrets that must never live in
// configuration, such as the master passphrase itself.
func (r *Resolver) RequireSecret(key string) (string, error) {
	if value, ok := r.lookup(key); ok {
		return value, nil
	}
	if value, ok := r.lookupFile(key); ok {
		return value, nil
	}
	return "", apperrors.Wrap(apperrors.ErrSecretMissing, fmt.Sprintf("credential %q", key))
}

// ClearSecrets drops the in-memory maps. Subsequent resolutions see the
// environment and file sources again only after another Load.
func (r *Resolver) ClearSecrets() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.envStore {
		delete(r.envStore, k)
	}
	for k := range r.fileSec {
		delete(r.fileSec, k)
	}
}

// lookup checks the preloaded namespace map and the well-known override variables.
func (r *Resolver) lookup(key string) (string, bool) {
	r.mu.RLock()
	value, ok := r.envStore[key]
	r.mu.RUnlock()
	if ok {
		return value, true
	}
	if name, known := wellKnownVars[key]; known {
		if value, found := os.LookupEnv(name); found {
			return value, true
		}
	}
	return "", false
}

// lookupFile checks the entries loaded from the secrets file.
func (r *Resolver) lookupFile(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.fileSec[key]
	return value, ok
}

// decryptConfigValue strips the prefix and decrypts the remainder under the
// master passphrase. The decrypt outcome is recorded on the audit trail.
func (r *Resolver) decryptConfigValue(key, configValue string) (string, error) {
	passphrase, ok := os.LookupEnv(MasterPassphraseVar)
	if !ok || passphrase == "" {
		return "", apperrors.Wrap(
			apperrors.ErrSecretMissing,
			fmt.Sprintf("%s is required to decrypt credential %q", MasterPassphraseVar, key),
		)
	}

	plaintext, err := r.engine.Decrypt(strings.TrimPrefix(configValue, EncryptedPrefix), passphrase)
	if err != nil {
		r.auditDecrypt(key, audit.ResultFailure)
		return "", apperrors.Wrap(err, fmt.Sprintf("failed to decrypt credential %q", key))
	}
	r.auditDecrypt(key, audit.ResultSuccess)
	return plaintext, nil
}

// auditDecrypt records a decrypt outcome when a trail is attached.
func (r *Resolver) auditDecrypt(key string, result audit.Result) {
	if r.trail == nil {
		return
	}
	_ = r.trail.LogEncryption(audit.ActionDecrypt, fmt.Sprintf("credential %q", key), result)
}

// envSuffixToKey turns MAILFORGE_SECRET_DATABASE_PASSWORD's suffix into the
// credential key form "database.password".
func envSuffixToKey(suffix string) string {
	return strings.ToLower(strings.ReplaceAll(suffix, "_", "."))
}
