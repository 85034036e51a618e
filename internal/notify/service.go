package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinic-notify/internal/domain/appointment"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION SERVICE FACADE
// ══════════════════════════════════════════════════════════════════════════════

// Service is the entry point called by the appointment and patient lifecycle.
// Trigger methods are fire-and-forget: the caller's mutation never blocks on
// delivery and never fails because a notification failed.
type Service struct {
	appointments appointment.Repository
	broadcaster  *Broadcaster
	scheduler    *ReminderScheduler
	sender       notification.Sender
	logger       *slog.Logger

	// deliveryTimeout bounds one background broadcast.
	deliveryTimeout time.Duration

	wg sync.WaitGroup
}

// NewService creates the notification facade.
func NewService(
	appointments appointment.Repository,
	broadcaster *Broadcaster,
	scheduler *ReminderScheduler,
	sender notification.Sender,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		appointments:    appointments,
		broadcaster:     broadcaster,
		scheduler:       scheduler,
		sender:          sender,
		logger:          logger.With("component", "notify_service"),
		deliveryTimeout: time.Minute,
	}
}

// Wait blocks until all in-flight background broadcasts finish. Used on
// shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle triggers
// ─────────────────────────────────────────────────────────────────────────────

// OnAppointmentCreated notifies operators about a new booking request.
func (s *Service) OnAppointmentCreated(appt *appointment.Appointment) {
	s.dispatch(func(ctx context.Context) *notification.DeliveryReport {
		payload := notification.NewAppointment{Appointment: s.appointmentInfo(ctx, appt)}
		return s.broadcaster.Broadcast(ctx, payload.Kind(), Compose(payload))
	})
}

// OnAppointmentStatusChanged notifies operators about a lifecycle transition.
func (s *Service) OnAppointmentStatusChanged(appt *appointment.Appointment, oldStatus, newStatus appointment.Status) {
	s.dispatch(func(ctx context.Context) *notification.DeliveryReport {
		payload := notification.StatusChanged{
			Appointment: s.appointmentInfo(ctx, appt),
			OldStatus:   string(oldStatus),
			NewStatus:   string(newStatus),
		}
		return s.broadcaster.Broadcast(ctx, payload.Kind(), Compose(payload))
	})
}

// OnAppointmentConfirmedWithTime notifies operators that an appointment was
// confirmed with an explicit visit time and, when requested, schedules a
// reminder for one hour before the visit date's fire time supplied by the
// caller.
func (s *Service) OnAppointmentConfirmedWithTime(appt *appointment.Appointment, remindAt time.Time) {
	s.dispatch(func(ctx context.Context) *notification.DeliveryReport {
		payload := notification.ConfirmedWithTime{Appointment: s.appointmentInfo(ctx, appt)}
		return s.broadcaster.Broadcast(ctx, payload.Kind(), Compose(payload))
	})

	if !remindAt.IsZero() {
		s.ScheduleReminder(appt.ID, remindAt)
	}
}

// OnPatientCreated notifies operators about an auto-created patient record.
func (s *Service) OnPatientCreated(p *appointment.Patient, appointmentID int64) {
	s.dispatch(func(ctx context.Context) *notification.DeliveryReport {
		serviceName := s.serviceName(ctx, p.ServiceID)
		payload := notification.PatientCreated{
			PatientID:     p.ID,
			FullName:      p.FullName,
			Phone:         p.Phone,
			ServiceName:   serviceName,
			AppointmentID: appointmentID,
		}
		return s.broadcaster.Broadcast(ctx, payload.Kind(), Compose(payload))
	})
}

// ScheduleReminder arms a deferred reminder delivery for the appointment.
func (s *Service) ScheduleReminder(appointmentID int64, fireAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.scheduler.Schedule(ctx, appointmentID, fireAt); err != nil {
		s.logger.Error("schedule reminder failed",
			"appointment_id", appointmentID,
			"error", err,
		)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Test notifications (admin diagnostics)
// ─────────────────────────────────────────────────────────────────────────────

// TestResult is the structured outcome of a test notification, returned
// synchronously to the admin surface instead of an exception-style failure.
type TestResult struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	MessageID int64     `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// SendTestNotification renders a sample payload for the kind and sends it to
// one recipient. Unlike the lifecycle triggers this is synchronous; the error
// return covers only invalid input, delivery failure lands in the result.
func (s *Service) SendTestNotification(ctx context.Context, kind notification.Kind, recipient notification.Recipient) (*TestResult, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
	if recipient.IsZero() {
		return nil, fmt.Errorf("empty recipient")
	}

	result := &TestResult{
		ID:        uuid.New(),
		Kind:      kind.String(),
		Recipient: recipient.String(),
	}

	text := Compose(samplePayload(kind))
	dr := s.sender.Send(ctx, recipient, text)
	result.Success = dr.Success
	result.MessageID = dr.MessageID
	if dr.Error != nil {
		result.Error = dr.Error.Error()
	}

	s.logger.Info("test notification",
		"kind", kind.String(),
		"recipient", recipient.String(),
		"success", result.Success,
	)
	return result, nil
}

// samplePayload builds a fixed demonstration payload for each kind.
func samplePayload(kind notification.Kind) notification.Payload {
	sample := notification.AppointmentInfo{
		ID:            0,
		Name:          "Test Patient",
		Email:         "test@example.com",
		Phone:         "+7 900 000-00-00",
		ServiceName:   "Consultation",
		PreferredDate: timeutil.Now(),
		Time:          "12:00",
	}

	switch kind {
	case notification.KindNewAppointment:
		return notification.NewAppointment{Appointment: sample}
	case notification.KindAppointmentStatusChanged:
		return notification.StatusChanged{Appointment: sample, OldStatus: "new", NewStatus: "confirmed"}
	case notification.KindAppointmentConfirmedWithTime:
		return notification.ConfirmedWithTime{Appointment: sample}
	case notification.KindAppointmentReminder:
		return notification.Reminder{Appointment: sample}
	case notification.KindPatientCreated:
		return notification.PatientCreated{PatientID: 0, FullName: "Test Patient", Phone: sample.Phone, ServiceName: sample.ServiceName}
	default:
		return notification.DailySummary{Date: timeutil.Now()}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────────────────────

// dispatch runs one broadcast in the background with panic isolation.
func (s *Service) dispatch(fn func(ctx context.Context) *notification.DeliveryReport) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notification dispatch panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.deliveryTimeout)
		defer cancel()

		report := fn(ctx)
		if report != nil && !report.Delivered() && len(report.Results) > 0 {
			s.logger.Error("notification not delivered to any operator", "summary", report.Summary())
		}
	}()
}

// appointmentInfo snapshots the appointment with its resolved service name.
func (s *Service) appointmentInfo(ctx context.Context, appt *appointment.Appointment) notification.AppointmentInfo {
	return notification.AppointmentInfo{
		ID:            appt.ID,
		Name:          appt.Name,
		Email:         appt.Email,
		Phone:         appt.Phone,
		ServiceName:   s.serviceName(ctx, appt.ServiceID),
		PreferredDate: appt.PreferredDate,
		Time:          appt.Time,
		Message:       appt.Message,
	}
}

// serviceName resolves the display name, falling back to empty on error so a
// missing lookup never blocks a notification.
func (s *Service) serviceName(ctx context.Context, serviceID int64) string {
	if serviceID == 0 {
		return ""
	}
	name, err := s.appointments.ServiceName(ctx, serviceID)
	if err != nil {
		s.logger.Warn("service name lookup failed", "service_id", serviceID, "error", err)
		return ""
	}
	return name
}
