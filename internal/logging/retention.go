package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const logFilePattern = "ytwhisper-*.log"

// LogFilePath returns the daily log file inside dir for the given time.
func LogFilePath(dir string, now time.Time) string {
	return filepath.Join(dir, "ytwhisper-"+now.Format("2006-01-02")+".log")
}

// CleanupOldLogs removes daily log files in dir that are older than
// retentionDays. A retentionDays value of 0 disables pruning. The file
// currently being written is never removed.
func CleanupOldLogs(logger *slog.Logger, dir string, retentionDays int, now time.Time) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	current := LogFilePath(dir, now)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if matched, err := filepath.Match(logFilePattern, name); err != nil || !matched {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if fullPath == current {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and paths.log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned",
				String("path", fullPath),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
	return removed
}
