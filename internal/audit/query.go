package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// QueryOptions filters entries read back from the rotation files.
type QueryOptions struct {
	// Since and Until bound the entry timestamps (inclusive lower, exclusive upper).
	Since *time.Time
	Until *time.Time
	// Event and Result filter by exact match when non-empty.
	Event  Event
	Result Result
	// Limit caps the number of returned entries; zero means no cap.
	Limit int
}

// Query reads entries matching the options from all rotation files in the
// trail's directory, newest first. Call Flush beforehand when queued entries
// must be visible. Lines that fail to parse are skipped.
func (t *Trail) Query(options QueryOptions) ([]Entry, error) {
	dirEntries, err := os.ReadDir(t.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log directory: %w", err)
	}

	var entries []Entry
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		fileEntries, err := readEntries(filepath.Join(t.cfg.Dir, name), options)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if options.Limit > 0 && len(entries) > options.Limit {
		entries = entries[:options.Limit]
	}
	return entries, nil
}

// readEntries scans one NDJSON file and returns the entries matching options.
func readEntries(path string, options QueryOptions) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if matches(entry, options) {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading audit log file %s: %w", path, err)
	}
	return entries, nil
}

// matches checks an entry against the query filters.
func matches(entry Entry, options QueryOptions) bool {
	if options.Since != nil && entry.Timestamp.Before(*options.Since) {
		return false
	}
	if options.Until != nil && !entry.Timestamp.Before(*options.Until) {
		return false
	}
	if options.Event != "" && entry.Event != options.Event {
		return false
	}
	if options.Result != "" && entry.Result != options.Result {
		return false
	}
	return true
}
