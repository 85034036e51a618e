package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReminderRecoverer re-arms persisted reminder jobs that have no live timer.
// Implemented by notify.ReminderScheduler.
type ReminderRecoverer interface {
	RecoverPending(ctx context.Context) error
}

// ReminderSweepJob periodically re-arms reminders whose timer was lost: a
// fire-time storage error leaves the row armed, and without a sweep it would
// wait for the next restart.
type ReminderSweepJob struct {
	recoverer ReminderRecoverer
	logger    *slog.Logger
}

// NewReminderSweepJob creates a new ReminderSweepJob.
func NewReminderSweepJob(recoverer ReminderRecoverer, logger *slog.Logger) *ReminderSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderSweepJob{
		recoverer: recoverer,
		logger:    logger.With("job", "reminder_sweep"),
	}
}

// Name returns the unique name of the job.
func (j *ReminderSweepJob) Name() string {
	return "reminder_sweep"
}

// Description returns a human-readable description of the job.
func (j *ReminderSweepJob) Description() string {
	return "Re-arms persisted reminders that lost their in-memory timer"
}

// Run re-arms every armed reminder row not already tracked by this process.
func (j *ReminderSweepJob) Run(ctx context.Context) error {
	if err := j.recoverer.RecoverPending(ctx); err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}
	return nil
}
