// Package notification contains the notification domain model of Clinic Notify:
// the closed set of notification kinds with one typed payload per kind, the
// per-recipient delivery result, and the aggregate broadcast report.
package notification

import (
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind identifies what happened. The set is closed: every kind has exactly one
// payload type, and the composer has exactly one renderer per kind.
type Kind string

const (
	KindNewAppointment               Kind = "new_appointment"
	KindAppointmentStatusChanged     Kind = "appointment_status_changed"
	KindAppointmentConfirmedWithTime Kind = "appointment_confirmed_with_time"
	KindAppointmentReminder          Kind = "appointment_reminder"
	KindPatientCreated               Kind = "patient_created"
	KindDailySummary                 Kind = "daily_summary"
)

// IsValid reports whether the kind is a known value.
func (k Kind) IsValid() bool {
	switch k {
	case KindNewAppointment, KindAppointmentStatusChanged,
		KindAppointmentConfirmedWithTime, KindAppointmentReminder,
		KindPatientCreated, KindDailySummary:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind parses a wire representation into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", errors.New("notification: unknown kind " + s)
	}
	return k, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYLOADS
// One struct per kind. Optional fields are rendered as placeholders by the
// composer, never dropped at the type level.
// ══════════════════════════════════════════════════════════════════════════════

// Payload is the marker interface implemented by every payload type.
type Payload interface {
	Kind() Kind
}

// AppointmentInfo is the appointment snapshot shared by appointment payloads.
type AppointmentInfo struct {
	ID            int64
	Name          string
	Email         string
	Phone         string
	ServiceName   string
	PreferredDate time.Time

	// Time is the confirmed time string ("14:30"); empty until confirmed.
	Time string

	Message string
}

// NewAppointment is sent when a booking request is created.
type NewAppointment struct {
	Appointment AppointmentInfo
}

func (NewAppointment) Kind() Kind { return KindNewAppointment }

// StatusChanged is sent on any lifecycle transition.
type StatusChanged struct {
	Appointment AppointmentInfo
	OldStatus   string
	NewStatus   string
}

func (StatusChanged) Kind() Kind { return KindAppointmentStatusChanged }

// ConfirmedWithTime is sent when an operator confirms an appointment and
// assigns a visit time.
type ConfirmedWithTime struct {
	Appointment AppointmentInfo
}

func (ConfirmedWithTime) Kind() Kind { return KindAppointmentConfirmedWithTime }

// Reminder is sent by the reminder scheduler ahead of a confirmed visit.
type Reminder struct {
	Appointment AppointmentInfo
}

func (Reminder) Kind() Kind { return KindAppointmentReminder }

// PatientCreated is sent when a patient record is auto-created.
type PatientCreated struct {
	PatientID     int64
	FullName      string
	Phone         string
	ServiceName   string
	AppointmentID int64
}

func (PatientCreated) Kind() Kind { return KindPatientCreated }

// DailySummary aggregates a day of activity for operators.
type DailySummary struct {
	Date              time.Time
	NewAppointments   int
	ConfirmedVisits   int
	CancelledVisits   int
	NewPatients       int
	InboundMessages   int
}

func (DailySummary) Kind() Kind { return KindDailySummary }
