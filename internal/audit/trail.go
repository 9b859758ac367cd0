// Package audit records structured security events durably, without blocking
// the caller, while bounding disk usage via size-based rotation and age-based
// retention.
//
// The trail accepts entries from any number of producers; a single background
// worker drains the queue on a fixed period and appends newline-delimited JSON
// to the current rotation file. Individual write failures are absorbed (logged
// and dropped) so audit logging never breaks the operation it records;
// initialization failures are surfaced, since a system that cannot audit must
// refuse privileged work.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mailforge/mailforge/internal/metrics"
)

// Lifecycle states of a Trail.
const (
	stateUninitialized = iota
	stateInitializing
	stateRunning
	stateShuttingDown
	stateStopped
)

const (
	filePrefix = "audit-"
	fileSuffix = ".log"
	// fileTimeFormat embeds the UTC creation timestamp in the file name; the
	// millisecond component keeps names unique across rapid rotations.
	fileTimeFormat = "20060102T150405.000"

	// shutdownWait bounds how long Shutdown waits for the background workers.
	shutdownWait = 5 * time.Second
)

// Config controls rotation, retention and flush behavior of a Trail.
type Config struct {
	// Dir is the directory holding the rotation files, created owner-only.
	Dir string
	// MaxFileSize is the rotation threshold in bytes.
	MaxFileSize int64
	// Retention is the age after which sealed files are deleted.
	Retention time.Duration
	// FlushInterval is the period of the background queue drain.
	FlushInterval time.Duration
	// CleanupInterval is the period of the retention sweep.
	CleanupInterval time.Duration
}

// withDefaults fills unset fields with the documented defaults.
func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = "audit-logs"
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 24 * time.Hour
	}
	return c
}

// Trail is the append-only audit log service. Producers enqueue entries
// without blocking on I/O; a single worker serializes all file writes.
type Trail struct {
	cfg     Config
	logger  *slog.Logger
	metrics metrics.BusinessMetrics

	mu    sync.Mutex // guards state and queue
	state int
	queue []Entry

	wmu      sync.Mutex // serializes writes and rotation
	file     *os.File
	fileSize int64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTrail creates an uninitialized Trail. Initialize (or the first logging
// call) opens the first rotation file and starts the background workers.
func NewTrail(cfg Config, logger *slog.Logger, businessMetrics metrics.BusinessMetrics) *Trail {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Trail{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: businessMetrics,
		done:    make(chan struct{}),
	}
}

// Initialize creates the log directory, opens the first rotation file and
// starts the flush and cleanup workers. It is idempotent: any call after the
// first is a no-op. Failures here are fatal to the caller.
func (t *Trail) Initialize() error {
	t.mu.Lock()
	if t.state != stateUninitialized {
		t.mu.Unlock()
		return nil
	}
	t.state = stateInitializing
	t.mu.Unlock()

	if err := os.MkdirAll(t.cfg.Dir, 0o700); err != nil {
		t.fail()
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	t.wmu.Lock()
	err := t.openFile()
	t.wmu.Unlock()
	if err != nil {
		t.fail()
		return err
	}

	t.wg.Add(2)
	go t.flushLoop()
	go t.cleanupLoop()

	t.mu.Lock()
	t.state = stateRunning
	t.mu.Unlock()

	t.enqueue(newEntry(EventSystem, ActionInitialize, "audit trail initialized", ResultSuccess))
	return nil
}

// fail reverts a failed initialization so a later call may retry.
func (t *Trail) fail() {
	t.mu.Lock()
	t.state = stateUninitialized
	t.mu.Unlock()
}

// Log constructs an entry and enqueues it, returning immediately. The only
// possible error is a failed implicit initialization on first use; once the
// trail runs, Log never fails and never blocks on I/O. After shutdown has
// begun, entries are silently discarded.
func (t *Trail) Log(event Event, action Action, details string, result Result) error {
	return t.LogEntry(newEntry(event, action, details, result))
}

// LogEntry enqueues a fully populated entry. See Log.
func (t *Trail) LogEntry(entry Entry) error {
	if err := t.ensureInitialized(); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	t.enqueue(entry)
	return nil
}

// ensureInitialized performs the implicit first-use initialization.
func (t *Trail) ensureInitialized() error {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state != stateUninitialized {
		return nil
	}
	return t.Initialize()
}

// enqueue appends to the queue unless shutdown has begun.
func (t *Trail) enqueue(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state >= stateShuttingDown {
		return
	}
	t.queue = append(t.queue, entry)
}

// Flush synchronously drains the queue and forces the file buffer to disk.
// Used before process exit and by tests that need determinism.
func (t *Trail) Flush() {
	t.drain()
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if t.file != nil {
		if err := t.file.Sync(); err != nil {
			t.logger.Warn("failed to sync audit log", slog.Any("error", err))
		}
	}
}

// Shutdown records a system/shutdown entry, flushes the queue, stops the
// background workers (bounded wait) and closes the current file. It is
// idempotent; afterwards logging calls are accepted but discarded.
func (t *Trail) Shutdown() {
	t.mu.Lock()
	if t.state != stateRunning {
		t.mu.Unlock()
		return
	}
	t.queue = append(t.queue, newEntry(EventSystem, ActionShutdown, "audit trail shutting down", ResultSuccess))
	t.state = stateShuttingDown
	t.mu.Unlock()

	close(t.done)

	// Bounded wait for the workers; abandon rather than hang forever.
	waited := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(shutdownWait):
		t.logger.Warn("timed out waiting for audit workers to stop")
	}

	t.drain()

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if t.file != nil {
		if err := t.file.Sync(); err != nil {
			t.logger.Warn("failed to sync audit log", slog.Any("error", err))
		}
		if err := t.file.Close(); err != nil {
			t.logger.Warn("failed to close audit log", slog.Any("error", err))
		}
		t.file = nil
	}

	t.mu.Lock()
	t.state = stateStopped
	t.mu.Unlock()
}

// flushLoop drains the queue on a fixed period until shutdown.
func (t *Trail) flushLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.drain()
		case <-t.done:
			t.drain()
			return
		}
	}
}

// cleanupLoop runs the retention sweep on a fixed period until shutdown.
func (t *Trail) cleanupLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Cleanup()
		case <-t.done:
			return
		}
	}
}

// drain writes all queued entries to the current file in enqueue order. The
// write lock is held across the queue swap so two concurrent drains (the
// ticker and an explicit Flush) cannot write their batches out of order.
func (t *Trail) drain() {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	t.mu.Lock()
	batch := t.queue
	t.queue = nil
	t.mu.Unlock()

	for _, entry := range batch {
		t.writeEntry(entry)
	}
}

// writeEntry appends one entry as a single JSON line, rotating first when the
// write would push the current file past the size bound. A failed write is
// logged and the entry dropped; audit writes are best-effort durable.
func (t *Trail) writeEntry(entry Entry) {
	if t.file == nil {
		return
	}

	line, err := json.Marshal(entry)
	if err != nil {
		t.logger.Warn("failed to serialize audit entry", slog.Any("error", err))
		t.metrics.RecordOperation(context.Background(), "audit", "write", "error")
		return
	}
	line = append(line, '\n')

	if t.fileSize > 0 && t.fileSize+int64(len(line)) > t.cfg.MaxFileSize {
		t.rotate()
	}

	n, err := t.file.Write(line)
	if err != nil {
		t.logger.Warn("failed to write audit entry", slog.Any("error", err))
		t.metrics.RecordOperation(context.Background(), "audit", "write", "error")
		return
	}
	t.fileSize += int64(n)
	t.metrics.RecordOperation(context.Background(), "audit", "write", "success")
}

// rotate seals the current file and opens a new one. On failure the current
// file is kept so entries are not lost to a missing handle.
func (t *Trail) rotate() {
	if t.file != nil {
		if err := t.file.Sync(); err != nil {
			t.logger.Warn("failed to sync audit log before rotation", slog.Any("error", err))
		}
		if err := t.file.Close(); err != nil {
			t.logger.Warn("failed to close audit log during rotation", slog.Any("error", err))
		}
		t.file = nil
	}
	if err := t.openFile(); err != nil {
		t.logger.Error("failed to open new audit log file", slog.Any("error", err))
		return
	}
	t.metrics.RecordOperation(context.Background(), "audit", "rotate", "success")
}

// openFile opens a fresh rotation file named with the UTC creation timestamp.
func (t *Trail) openFile() error {
	name := filePrefix + time.Now().UTC().Format(fileTimeFormat) + fileSuffix
	path := filepath.Join(t.cfg.Dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	t.file = file
	t.fileSize = 0
	return nil
}

// Cleanup deletes sealed rotation files older than the retention window.
// Deletion failures are logged as warnings, never escalated.
func (t *Trail) Cleanup() {
	cutoff := time.Now().Add(-t.cfg.Retention)

	t.wmu.Lock()
	current := ""
	if t.file != nil {
		current = filepath.Base(t.file.Name())
	}
	t.wmu.Unlock()

	dirEntries, err := os.ReadDir(t.cfg.Dir)
	if err != nil {
		t.logger.Warn("failed to read audit log directory", slog.Any("error", err))
		return
	}

	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if name == current {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(t.cfg.Dir, name)); err != nil {
			t.logger.Warn("failed to delete expired audit log",
				slog.String("file", name),
				slog.Any("error", err),
			)
			continue
		}
		t.logger.Info("deleted expired audit log", slog.String("file", name))
	}
}
