package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mailforge/mailforge/internal/config"
	"github.com/mailforge/mailforge/internal/crypto"
	"github.com/mailforge/mailforge/internal/secrets"
)

// RunEncryptValue encrypts a value under the master passphrase and prints the
// result with the encrypted prefix, ready to paste into configuration. The
// value is read from the flag or, when empty, from stdin so it stays out of
// shell history. The passphrase comes from MAILFORGE_MASTER_PASSWORD only.
func RunEncryptValue(value, format string, input io.Reader, output io.Writer) error {
	// Configuration is loaded for its .env side effect so the passphrase may
	// live in a local .env during development.
	_ = config.Load()

	passphrase, ok := os.LookupEnv(secrets.MasterPassphraseVar)
	if !ok || passphrase == "" {
		return fmt.Errorf("%s must be set", secrets.MasterPassphraseVar)
	}

	if value == "" {
		fmt.Fprint(output, "Enter value to encrypt: ")
		reader := bufio.NewReader(input)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read value: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}

	engine := crypto.NewEngine()
	encrypted, err := engine.Encrypt(value, passphrase)
	if err != nil {
		return fmt.Errorf("failed to encrypt value: %w", err)
	}

	serialized := secrets.EncryptedPrefix + encrypted
	if format == "json" {
		outputJSON(map[string]string{"value": serialized})
		return nil
	}
	fmt.Fprintln(output, serialized)
	return nil
}
