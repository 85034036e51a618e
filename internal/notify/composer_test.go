package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/pkg/timeutil"
)

func sampleInfo() notification.AppointmentInfo {
	return notification.AppointmentInfo{
		ID:            42,
		Name:          "Anna Petrova",
		Email:         "anna@example.com",
		Phone:         "+7 900 123-45-67",
		ServiceName:   "Dental cleaning",
		PreferredDate: time.Date(2026, 9, 14, 10, 0, 0, 0, timeutil.ClinicTZ),
		Time:          "14:30",
		Message:       "please call in advance",
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	payload := notification.NewAppointment{Appointment: sampleInfo()}

	first := Compose(payload)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Compose(payload))
	}
}

func TestComposeNewAppointment(t *testing.T) {
	text := Compose(notification.NewAppointment{Appointment: sampleInfo()})

	assert.True(t, strings.HasPrefix(text, "🆕 New appointment request"))
	assert.Contains(t, text, "Patient: Anna Petrova")
	assert.Contains(t, text, "Phone: +7 900 123-45-67")
	assert.Contains(t, text, "Service: Dental cleaning")
	assert.Contains(t, text, "Preferred date: 14.09.2026")
	assert.Contains(t, text, "Comment: please call in advance")
	assert.Contains(t, text, "Request #42")
}

func TestComposeNewAppointmentMissingFieldsUsePlaceholder(t *testing.T) {
	info := sampleInfo()
	info.Phone = ""
	info.ServiceName = ""
	info.Message = ""

	text := Compose(notification.NewAppointment{Appointment: info})

	assert.Contains(t, text, "Phone: —")
	assert.Contains(t, text, "Service: —")
	assert.NotContains(t, text, "Comment:")
}

func TestComposeStatusChanged(t *testing.T) {
	text := Compose(notification.StatusChanged{
		Appointment: sampleInfo(),
		OldStatus:   "new",
		NewStatus:   "confirmed",
	})

	assert.True(t, strings.HasPrefix(text, "🔄 Appointment status changed"))
	assert.Contains(t, text, "Status: new → confirmed")
}

func TestComposeConfirmedUsesExplicitTime(t *testing.T) {
	text := Compose(notification.ConfirmedWithTime{Appointment: sampleInfo()})

	assert.True(t, strings.HasPrefix(text, "✅ Appointment confirmed"))
	assert.Contains(t, text, "Time: 14:30")
}

func TestComposeReminderDerivesTimeFromDate(t *testing.T) {
	info := sampleInfo()
	info.Time = ""
	info.PreferredDate = time.Date(2026, 9, 14, 16, 45, 0, 0, timeutil.ClinicTZ)

	text := Compose(notification.Reminder{Appointment: info})

	assert.True(t, strings.HasPrefix(text, "⏰ Upcoming appointment"))
	assert.Contains(t, text, "Time: 16:45")
}

func TestComposePatientCreated(t *testing.T) {
	text := Compose(notification.PatientCreated{
		PatientID:     7,
		FullName:      "Anna Petrova",
		Phone:         "+7 900 123-45-67",
		ServiceName:   "Dental cleaning",
		AppointmentID: 42,
	})

	assert.True(t, strings.HasPrefix(text, "👤 New patient record"))
	assert.Contains(t, text, "From request #42")
	assert.Contains(t, text, "Patient #7")
}

func TestComposePatientCreatedWithoutAppointment(t *testing.T) {
	text := Compose(notification.PatientCreated{PatientID: 7, FullName: "Anna"})

	assert.NotContains(t, text, "From request")
}

func TestComposeDailySummary(t *testing.T) {
	text := Compose(notification.DailySummary{
		Date:            time.Date(2026, 8, 30, 0, 0, 0, 0, timeutil.ClinicTZ),
		NewAppointments: 3,
		ConfirmedVisits: 2,
		CancelledVisits: 1,
		NewPatients:     2,
		InboundMessages: 11,
	})

	assert.True(t, strings.HasPrefix(text, "📊 Daily summary for 30.08.2026"))
	assert.Contains(t, text, "New requests: 3")
	assert.Contains(t, text, "Inbound messages: 11")
}
