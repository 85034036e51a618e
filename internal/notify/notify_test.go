package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinichub/clinic-notify/internal/domain/appointment"
	"github.com/clinichub/clinic-notify/internal/domain/notification"
)

// ─────────────────────────────────────────────────────────────────────────────
// Shared fakes
// ─────────────────────────────────────────────────────────────────────────────

// fakeSender records every send and fails the recipients listed in failFor.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
}

type sentMessage struct {
	recipient notification.Recipient
	text      string
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

func (f *fakeSender) Send(_ context.Context, r notification.Recipient, text string) notification.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{recipient: r, text: text})
	if err, ok := f.failFor[r.String()]; ok {
		return notification.NewFailureResult(r, err, false)
	}
	return notification.NewSuccessResult(r, int64(len(f.sent)))
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].text
}

// fakeAppointments serves appointments from a map.
type fakeAppointments struct {
	mu       sync.Mutex
	byID     map[int64]*appointment.Appointment
	services map[int64]string
	getErr   error
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{
		byID:     make(map[int64]*appointment.Appointment),
		services: make(map[int64]string),
	}
}

func (f *fakeAppointments) GetByID(_ context.Context, id int64) (*appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	appt, ok := f.byID[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (f *fakeAppointments) ServiceName(_ context.Context, serviceID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.services[serviceID]
	if !ok {
		return "", appointment.ErrServiceNotFound
	}
	return name, nil
}

func (f *fakeAppointments) put(appt *appointment.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[appt.ID] = appt
}

func (f *fakeAppointments) setStatus(id int64, status appointment.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if appt, ok := f.byID[id]; ok {
		appt.Status = status
	}
}

func (f *fakeAppointments) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

// memoryReminderStore is an in-memory notification.ReminderStore.
type memoryReminderStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*notification.ReminderJob
}

func newMemoryReminderStore() *memoryReminderStore {
	return &memoryReminderStore{jobs: make(map[uuid.UUID]*notification.ReminderJob)}
}

func (s *memoryReminderStore) Create(_ context.Context, job *notification.ReminderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memoryReminderStore) ListArmed(_ context.Context) ([]*notification.ReminderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.ReminderJob
	for _, job := range s.jobs {
		if job.State == notification.ReminderArmed {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryReminderStore) Resolve(_ context.Context, id uuid.UUID, state notification.ReminderState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	job.State = state
	now := time.Now().UTC()
	job.ResolvedAt = &now
	return nil
}

func (s *memoryReminderStore) countState(state notification.ReminderState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.State == state {
			n++
		}
	}
	return n
}

func (s *memoryReminderStore) stateOf(id uuid.UUID) notification.ReminderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		return job.State
	}
	return ""
}

func (s *memoryReminderStore) single() *notification.ReminderJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		cp := *job
		return &cp
	}
	return nil
}
