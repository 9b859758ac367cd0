package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailforge/mailforge/internal/crypto"
	"github.com/mailforge/mailforge/internal/secrets"
)

func TestRunEncryptValue(t *testing.T) {
	t.Run("encrypts the flag value", func(t *testing.T) {
		t.Setenv(secrets.MasterPassphraseVar, "master-passphrase-for-tests")

		var out bytes.Buffer
		err := RunEncryptValue("db-password", "text", strings.NewReader(""), &out)
		require.NoError(t, err)

		serialized := strings.TrimSpace(out.String())
		require.True(t, strings.HasPrefix(serialized, secrets.EncryptedPrefix))
		assert.NotContains(t, serialized, "db-password")

		// The output must decrypt back under the same passphrase.
		engine := crypto.NewEngine()
		plaintext, err := engine.Decrypt(
			strings.TrimPrefix(serialized, secrets.EncryptedPrefix),
			"master-passphrase-for-tests",
		)
		require.NoError(t, err)
		assert.Equal(t, "db-password", plaintext)
	})

	t.Run("reads the value from stdin when the flag is empty", func(t *testing.T) {
		t.Setenv(secrets.MasterPassphraseVar, "master-passphrase-for-tests")

		var out bytes.Buffer
		err := RunEncryptValue("", "text", strings.NewReader("stdin-secret\n"), &out)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		serialized := lines[len(lines)-1]
		serialized = serialized[strings.Index(serialized, secrets.EncryptedPrefix):]

		engine := crypto.NewEngine()
		plaintext, err := engine.Decrypt(
			strings.TrimPrefix(serialized, secrets.EncryptedPrefix),
			"master-passphrase-for-tests",
		)
		require.NoError(t, err)
		assert.Equal(t, "stdin-secret", plaintext)
	})

	t.Run("missing master passphrase is an error", func(t *testing.T) {
		t.Setenv(secrets.MasterPassphraseVar, "")

		err := RunEncryptValue("value", "text", strings.NewReader(""), &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), secrets.MasterPassphraseVar)
	})
}
