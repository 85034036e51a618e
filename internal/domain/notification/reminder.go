package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReminderState is the lifecycle state of a reminder job. All states other
// than Armed are terminal.
type ReminderState string

const (
	// ReminderArmed - scheduled, waiting for the fire time.
	ReminderArmed ReminderState = "armed"

	// ReminderFired - re-validation passed and the broadcast was made.
	ReminderFired ReminderState = "fired"

	// ReminderSuppressed - at fire time the appointment was gone or no longer
	// confirmed. A normal outcome, not an error.
	ReminderSuppressed ReminderState = "suppressed"

	// ReminderExpired - the fire time was already in the past at schedule time.
	ReminderExpired ReminderState = "expired"
)

// IsTerminal reports whether the state ends the job.
func (s ReminderState) IsTerminal() bool {
	return s != ReminderArmed
}

// ReminderJob is one scheduled, one-shot reminder for an appointment. Jobs are
// persisted so armed reminders survive a process restart; a recovery sweep on
// startup re-arms anything still pending.
type ReminderJob struct {
	ID            uuid.UUID
	AppointmentID int64
	FireAt        time.Time
	State         ReminderState
	CreatedAt     time.Time

	// ResolvedAt is set when the job reaches a terminal state.
	ResolvedAt *time.Time
}

// NewReminderJob builds an armed job.
func NewReminderJob(appointmentID int64, fireAt time.Time) *ReminderJob {
	return &ReminderJob{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		FireAt:        fireAt,
		State:         ReminderArmed,
		CreatedAt:     time.Now().UTC(),
	}
}

// ReminderStore persists reminder jobs with a due-time index.
type ReminderStore interface {
	// Create inserts a job row.
	Create(ctx context.Context, job *ReminderJob) error

	// ListArmed returns all jobs still in the armed state, due first.
	ListArmed(ctx context.Context) ([]*ReminderJob, error)

	// Resolve moves a job to a terminal state.
	Resolve(ctx context.Context, id uuid.UUID, state ReminderState) error
}
