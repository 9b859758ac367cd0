package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCleanAuditLogs(t *testing.T) {
	writeAged := func(t *testing.T, dir, name string, age time.Duration) string {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
		mtime := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}

	t.Run("deletes expired files", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("AUDIT_LOG_DIR", dir)
		old := writeAged(t, dir, "audit-20200101T000000.000.log", 72*time.Hour)
		fresh := writeAged(t, dir, "audit-20990101T000000.000.log", time.Hour)

		require.NoError(t, RunCleanAuditLogs(context.Background(), 1, false, "text"))

		assert.NoFileExists(t, old)
		assert.FileExists(t, fresh)
	})

	t.Run("dry run deletes nothing", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("AUDIT_LOG_DIR", dir)
		old := writeAged(t, dir, "audit-20200101T000000.000.log", 72*time.Hour)

		require.NoError(t, RunCleanAuditLogs(context.Background(), 1, true, "json"))

		assert.FileExists(t, old)
	})

	t.Run("negative days is an error", func(t *testing.T) {
		err := RunCleanAuditLogs(context.Background(), -1, false, "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "days must be a positive number")
	})
}
