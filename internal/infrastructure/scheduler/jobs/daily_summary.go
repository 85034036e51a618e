// Package jobs contains implementations of scheduled jobs for Clinic Notify.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/internal/notify"
	"github.com/clinichub/clinic-notify/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY SUMMARY JOB
// ══════════════════════════════════════════════════════════════════════════════

// SummarySource aggregates activity counters for one day.
type SummarySource interface {
	Summarize(ctx context.Context, from, to time.Time) (notification.DailySummary, error)
}

// Broadcaster delivers a composed notification to every operator.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind notification.Kind, text string) *notification.DeliveryReport
}

// DailySummaryJob sends operators a digest of the past day: new booking
// requests, confirmations, cancellations, new patients and inbound messages.
type DailySummaryJob struct {
	source      SummarySource
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewDailySummaryJob creates a new DailySummaryJob.
func NewDailySummaryJob(source SummarySource, broadcaster Broadcaster, logger *slog.Logger) *DailySummaryJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailySummaryJob{
		source:      source,
		broadcaster: broadcaster,
		logger:      logger.With("job", "daily_summary"),
	}
}

// Name returns the unique name of the job.
func (j *DailySummaryJob) Name() string {
	return "daily_summary"
}

// Description returns a human-readable description of the job.
func (j *DailySummaryJob) Description() string {
	return "Sends operators a digest of the previous day's clinic activity"
}

// Run aggregates the previous clinic-local day and broadcasts the digest.
func (j *DailySummaryJob) Run(ctx context.Context) error {
	now := time.Now().In(timeutil.ClinicTZ)
	from := timeutil.StartOfDay(now.AddDate(0, 0, -1))
	to := timeutil.StartOfDay(now)

	summary, err := j.source.Summarize(ctx, from, to)
	if err != nil {
		return fmt.Errorf("daily summary: %w", err)
	}

	report := j.broadcaster.Broadcast(ctx, notification.KindDailySummary, notify.Compose(summary))
	j.logger.Info("daily summary sent",
		"date", timeutil.FormatDate(from),
		"delivered", report.Delivered(),
		"failed", report.Failed(),
	)
	return nil
}
