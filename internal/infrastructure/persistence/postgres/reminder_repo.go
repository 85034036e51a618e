package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinic-notify/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ReminderRepository implements notification.ReminderStore. Persisting jobs is
// what lets armed reminders survive a process restart.
type ReminderRepository struct {
	db DB
}

// NewReminderRepository creates a new ReminderRepository.
func NewReminderRepository(db DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create inserts a job row.
func (r *ReminderRepository) Create(ctx context.Context, job *notification.ReminderJob) error {
	query := `
		INSERT INTO reminder_jobs (id, appointment_id, fire_at, state, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var resolvedAt *time.Time
	if job.State.IsTerminal() {
		now := time.Now().UTC()
		resolvedAt = &now
	}

	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.AppointmentID,
		job.FireAt,
		string(job.State),
		job.CreatedAt,
		resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("create reminder job: %w", err)
	}
	return nil
}

// ListArmed returns all armed jobs, due first.
func (r *ReminderRepository) ListArmed(ctx context.Context) ([]*notification.ReminderJob, error) {
	query := `
		SELECT id, appointment_id, fire_at, state, created_at, resolved_at
		FROM reminder_jobs
		WHERE state = 'armed'
		ORDER BY fire_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list armed reminders: %w", err)
	}
	defer rows.Close()

	var jobs []*notification.ReminderJob
	for rows.Next() {
		var job notification.ReminderJob
		var state string
		if err := rows.Scan(&job.ID, &job.AppointmentID, &job.FireAt, &state, &job.CreatedAt, &job.ResolvedAt); err != nil {
			return nil, err
		}
		job.State = notification.ReminderState(state)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// Resolve moves a job to a terminal state.
func (r *ReminderRepository) Resolve(ctx context.Context, id uuid.UUID, state notification.ReminderState) error {
	if !state.IsTerminal() {
		return fmt.Errorf("resolve reminder job: %q is not terminal", state)
	}

	query := `UPDATE reminder_jobs SET state = $1, resolved_at = $2 WHERE id = $3 AND state = 'armed'`

	if _, err := r.db.Exec(ctx, query, string(state), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("resolve reminder job: %w", err)
	}
	return nil
}
