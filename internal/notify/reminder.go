package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinic-notify/internal/domain/appointment"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// ReminderScheduler arms one-shot reminder deliveries for confirmed
// appointments. At fire time the appointment is re-fetched and re-validated:
// a cancellation written between scheduling and firing suppresses the
// reminder. Jobs are persisted; RecoverPending re-arms them after a restart.
type ReminderScheduler struct {
	appointments appointment.Repository
	broadcaster  *Broadcaster
	store        notification.ReminderStore
	logger       *slog.Logger

	// now is injectable for tests.
	now func() time.Time

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	firing map[uuid.UUID]bool
	wg     sync.WaitGroup
	closed bool
}

// NewReminderScheduler creates a scheduler. The store may be nil, in which
// case jobs live only in memory and are lost on restart.
func NewReminderScheduler(
	appointments appointment.Repository,
	broadcaster *Broadcaster,
	store notification.ReminderStore,
	logger *slog.Logger,
) *ReminderScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderScheduler{
		appointments: appointments,
		broadcaster:  broadcaster,
		store:        store,
		logger:       logger.With("component", "reminder_scheduler"),
		now:          time.Now,
		timers:       make(map[uuid.UUID]*time.Timer),
		firing:       make(map[uuid.UUID]bool),
	}
}

// Schedule arms a reminder for the appointment at fireAt. A fire time not in
// the future is a no-op: the job is recorded as expired, no timer is armed,
// and no error is returned.
func (s *ReminderScheduler) Schedule(ctx context.Context, appointmentID int64, fireAt time.Time) error {
	job := notification.NewReminderJob(appointmentID, fireAt)

	if !fireAt.After(s.now()) {
		job.State = notification.ReminderExpired
		s.logger.Info("reminder fire time already passed, not arming",
			"appointment_id", appointmentID,
			"fire_at", fireAt,
		)
		s.persist(ctx, job)
		return nil
	}

	s.persist(ctx, job)
	s.arm(job)

	s.logger.Info("reminder armed",
		"appointment_id", appointmentID,
		"fire_at", fireAt,
		"job_id", job.ID,
	)
	return nil
}

// RecoverPending re-arms every persisted job still in the armed state. Jobs
// whose fire time has already passed are fired immediately through the same
// re-validation path. Called at startup and by the periodic sweep job; jobs
// this process is already tracking are skipped, so repeated sweeps never
// double-fire.
func (s *ReminderScheduler) RecoverPending(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	jobs, err := s.store.ListArmed(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if job.FireAt.After(s.now()) {
			s.arm(job)
			continue
		}

		j := job
		s.mu.Lock()
		if s.closed || s.tracked(j.ID) {
			s.mu.Unlock()
			continue
		}
		s.firing[j.ID] = true
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			defer s.release(j.ID)
			s.fire(j)
		}()
	}

	if len(jobs) > 0 {
		s.logger.Info("recovered pending reminders", "count", len(jobs))
	}
	return nil
}

// Stop cancels all armed timers and waits for in-flight fires to finish.
// Armed jobs stay persisted for the next startup's recovery sweep.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Armed returns the number of currently armed timers.
func (s *ReminderScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// arm registers a timer for the job. A job already armed or firing in this
// process is left alone.
func (s *ReminderScheduler) arm(job *notification.ReminderJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.tracked(job.ID) {
		return
	}

	delay := job.FireAt.Sub(s.now())
	s.timers[job.ID] = time.AfterFunc(delay, func() {
		// The waitgroup add shares the lock with the closed check: once
		// Stop sets closed, no fire can slip past its Wait.
		s.mu.Lock()
		delete(s.timers, job.ID)
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.firing[job.ID] = true
		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()
		defer s.release(job.ID)
		s.fire(job)
	})
}

// tracked reports whether the job has a live timer or an in-flight fire.
// Callers hold mu.
func (s *ReminderScheduler) tracked(id uuid.UUID) bool {
	if _, ok := s.timers[id]; ok {
		return true
	}
	return s.firing[id]
}

func (s *ReminderScheduler) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.firing, id)
	s.mu.Unlock()
}

// fire re-validates the appointment and broadcasts the reminder. Suppression
// is an informational outcome, never an error.
func (s *ReminderScheduler) fire(job *notification.ReminderJob) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log := s.logger.With("appointment_id", job.AppointmentID, "job_id", job.ID)

	appt, err := s.appointments.GetByID(ctx, job.AppointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			log.Info("reminder suppressed: appointment gone")
			s.resolve(ctx, job, notification.ReminderSuppressed)
			return
		}
		// Storage failure: leave the job armed in the store so the next
		// recovery sweep retries it.
		log.Error("reminder re-fetch failed", "error", err)
		return
	}

	if appt.Status != appointment.StatusConfirmed {
		log.Info("reminder suppressed: status changed", "status", string(appt.Status))
		s.resolve(ctx, job, notification.ReminderSuppressed)
		return
	}

	serviceName, err := s.appointments.ServiceName(ctx, appt.ServiceID)
	if err != nil {
		serviceName = ""
	}

	payload := notification.Reminder{Appointment: notification.AppointmentInfo{
		ID:            appt.ID,
		Name:          appt.Name,
		Email:         appt.Email,
		Phone:         appt.Phone,
		ServiceName:   serviceName,
		PreferredDate: appt.PreferredDate,
		Time:          appt.Time,
		Message:       appt.Message,
	}}

	report := s.broadcaster.Broadcast(ctx, payload.Kind(), Compose(payload))
	if !report.Delivered() {
		log.Error("reminder broadcast failed for all recipients", "failed", report.Failed())
	}

	s.resolve(ctx, job, notification.ReminderFired)
	log.Info("reminder fired", "delivered", report.Succeeded())
}

func (s *ReminderScheduler) persist(ctx context.Context, job *notification.ReminderJob) {
	if s.store == nil {
		return
	}
	if err := s.store.Create(ctx, job); err != nil {
		s.logger.Error("persist reminder job failed", "job_id", job.ID, "error", err)
	}
}

func (s *ReminderScheduler) resolve(ctx context.Context, job *notification.ReminderJob, state notification.ReminderState) {
	job.State = state
	if s.store == nil {
		return
	}
	if err := s.store.Resolve(ctx, job.ID, state); err != nil {
		s.logger.Error("resolve reminder job failed", "job_id", job.ID, "error", err)
	}
}
