package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepDir deletes rotation files in dir older than the given age, returning
// how many files were (or would be) removed. With dryRun set, nothing is
// deleted. Unlike the trail's periodic sweep this operates on a bare
// directory, so the maintenance command works without starting a trail.
func SweepDir(dir string, olderThan time.Duration, dryRun bool) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log directory: %w", err)
	}

	count := 0
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if !dryRun {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return count, fmt.Errorf("failed to delete audit log %s: %w", name, err)
			}
		}
		count++
	}
	return count, nil
}
