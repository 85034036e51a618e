package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/clinichub/clinic-notify/internal/domain/appointment"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPOINTMENT REPOSITORY (READ-ONLY)
// The appointments, patients and services tables are owned by the admin
// application; this service only reads them. No migrations here.
// ══════════════════════════════════════════════════════════════════════════════

// AppointmentRepository implements appointment.Repository.
type AppointmentRepository struct {
	db DB
}

// NewAppointmentRepository creates a new AppointmentRepository.
func NewAppointmentRepository(db DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// GetByID returns an appointment. Reminder re-validation calls this at fire
// time, so the read must always hit the database, never a cache.
func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*appointment.Appointment, error) {
	query := `
		SELECT id, name, email, phone, service_id, preferred_date,
			   COALESCE(appointment_time, ''), status, COALESCE(message, ''),
			   created_at, updated_at
		FROM appointments
		WHERE id = $1`

	var a appointment.Appointment
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Phone,
		&a.ServiceID,
		&a.PreferredDate,
		&a.Time,
		&status,
		&a.Message,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, appointment.ErrNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	a.Status = appointment.Status(status)
	return &a, nil
}

// ServiceName resolves a service reference to its display name.
func (r *AppointmentRepository) ServiceName(ctx context.Context, serviceID int64) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM services WHERE id = $1`, serviceID).Scan(&name)
	if err != nil {
		if IsNoRows(err) {
			return "", appointment.ErrServiceNotFound
		}
		return "", fmt.Errorf("get service name: %w", err)
	}
	return name, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY SUMMARY SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// SummaryRepository aggregates one day of activity for the daily summary
// notification.
type SummaryRepository struct {
	db DB
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(db DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Summarize counts activity in [from, to).
func (r *SummaryRepository) Summarize(ctx context.Context, from, to time.Time) (notification.DailySummary, error) {
	summary := notification.DailySummary{Date: from}

	query := `
		SELECT
			(SELECT COUNT(*) FROM appointments WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM appointments WHERE status = 'confirmed' AND updated_at >= $1 AND updated_at < $2),
			(SELECT COUNT(*) FROM appointments WHERE status = 'cancelled' AND updated_at >= $1 AND updated_at < $2),
			(SELECT COUNT(*) FROM patients WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM messages WHERE direction = 'inbound' AND sent_at >= $1 AND sent_at < $2)`

	err := r.db.QueryRow(ctx, query, from, to).Scan(
		&summary.NewAppointments,
		&summary.ConfirmedVisits,
		&summary.CancelledVisits,
		&summary.NewPatients,
		&summary.InboundMessages,
	)
	if err != nil {
		return notification.DailySummary{}, fmt.Errorf("summarize: %w", err)
	}
	return summary, nil
}
