// Package appointment contains the read-only view of the clinic's appointment
// and patient records. These entities are owned by the surrounding admin
// application; the notification service only reads them — at trigger time and
// again when a reminder fires.
package appointment

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an appointment no longer exists.
	ErrNotFound = errors.New("appointment: not found")

	// ErrPatientNotFound is returned when a patient does not exist.
	ErrPatientNotFound = errors.New("appointment: patient not found")

	// ErrServiceNotFound is returned when a service reference cannot be resolved.
	ErrServiceNotFound = errors.New("appointment: service not found")
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusNew       Status = "new"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Appointment is a booking request made through the clinic site.
type Appointment struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	ServiceID int64

	// PreferredDate is the requested visit date.
	PreferredDate time.Time

	// Time is the confirmed visit time as entered by the operator ("14:30").
	// Empty until the appointment is confirmed with a time.
	Time string

	Status    Status
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patient is a clinic patient record, auto-created from a completed appointment.
type Patient struct {
	ID       int64
	FullName string
	Email    string
	Phone    string

	ServiceID int64

	// Notes may embed a back-reference to the originating appointment.
	Notes  string
	Status string

	CreatedAt time.Time
}
