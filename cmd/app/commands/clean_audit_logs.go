package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailforge/mailforge/internal/app"
	"github.com/mailforge/mailforge/internal/audit"
	"github.com/mailforge/mailforge/internal/config"
)

// RunCleanAuditLogs deletes audit log files older than the specified number of
// days. Supports dry-run mode to preview the deletion count and both text/JSON
// output formats. Operates directly on the log directory; no trail is started.
func RunCleanAuditLogs(ctx context.Context, days int, dryRun bool, format string) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}

	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("cleaning audit logs",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	count, err := audit.SweepDir(cfg.AuditLogDir, time.Duration(days)*24*time.Hour, dryRun)
	if err != nil {
		return fmt.Errorf("failed to clean audit logs: %w", err)
	}

	if format == "json" {
		outputJSON(map[string]any{
			"count":   count,
			"days":    days,
			"dry_run": dryRun,
		})
	} else {
		outputCleanText(count, days, dryRun)
	}

	logger.Info("cleanup completed",
		slog.Int("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}

// outputCleanText outputs the result in human-readable text format.
func outputCleanText(count, days int, dryRun bool) {
	if dryRun {
		fmt.Printf("Dry-run mode: Would delete %d audit log file(s) older than %d day(s)\n", count, days)
	} else {
		fmt.Printf("Successfully deleted %d audit log file(s) older than %d day(s)\n", count, days)
	}
}
