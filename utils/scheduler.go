package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retry configuration
const maxRetries = 3

var retryDelay = 2 * time.Minute

// ReminderJob reminds assessor groups about assessments left waiting.
type ReminderJob interface {
	RemindOverdueAssessments(ctx context.Context, olderThan time.Duration) (int, error)
}

type SchedulerConfig struct {
	ReminderSchedule string
	ReminderAfter    time.Duration
	CleanupSchedule  string
	ExportDir        string
	ExportTTL        time.Duration
}

// StartScheduler registers the assessment reminder and export cleanup jobs
// and starts the cron runner. Stop the returned cron to shut it down.
func StartScheduler(ctx context.Context, cfg SchedulerConfig, job ReminderJob, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	if cfg.ReminderSchedule != "" {
		_, err := c.AddFunc(cfg.ReminderSchedule, func() {
			if err := withRetries(ctx, logger, "assessment reminders", func() error {
				return runReminders(ctx, job, cfg.ReminderAfter, logger)
			}); err != nil {
				logger.Error("Assessment reminders failed after retries", zap.Error(err))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderSchedule, err)
		}
	}

	if cfg.CleanupSchedule != "" && cfg.ExportDir != "" {
		_, err := c.AddFunc(cfg.CleanupSchedule, func() {
			if err := withRetries(ctx, logger, "export cleanup", func() error {
				removed, err := CleanupExpiredFiles(cfg.ExportDir, cfg.ExportTTL, time.Now())
				if err == nil {
					logger.Info("Expired exports removed", zap.Int("files", removed), zap.String("dir", cfg.ExportDir))
				}
				return err
			}); err != nil {
				logger.Error("Export cleanup failed after retries", zap.Error(err))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupSchedule, err)
		}
	}

	c.Start()
	logger.Info("Scheduler started",
		zap.String("reminderSchedule", cfg.ReminderSchedule),
		zap.String("cleanupSchedule", cfg.CleanupSchedule),
	)
	return c, nil
}

func runReminders(ctx context.Context, job ReminderJob, olderThan time.Duration, logger *zap.Logger) error {
	reminded, err := job.RemindOverdueAssessments(ctx, olderThan)
	if err != nil {
		return err
	}
	logger.Info("Assessment reminders sent", zap.Int("reminded", reminded), zap.Duration("olderThan", olderThan))
	return nil
}

// withRetries runs fn up to maxRetries times, waiting retryDelay between
// attempts. It gives up early when ctx is done.
func withRetries(ctx context.Context, logger *zap.Logger, task string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warn("Scheduled task failed",
			zap.String("task", task),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", task, maxRetries, err)
}

// CleanupExpiredFiles removes the regular files in dir last modified more
// than ttl before now. A missing directory is not an error.
func CleanupExpiredFiles(dir string, ttl time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading files directory: %w", err)
	}

	removed := 0
	cutoff := now.Add(-ttl)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, fmt.Errorf("error checking file %s: %w", entry.Name(), err)
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("error deleting expired file %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
