// Package notify implements the notification core of Clinic Notify: the pure
// composer that renders notification payloads into message text, the operator
// broadcaster with per-recipient failure isolation, the reminder scheduler
// with fire-time re-validation, and the facade called by the appointment and
// patient lifecycle.
package notify

import (
	"fmt"
	"strings"

	"github.com/clinichub/clinic-notify/internal/domain/notification"
	"github.com/clinichub/clinic-notify/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSER
// Pure functions: same payload in, same text out. No I/O, no clock reads —
// every timestamp comes from the payload.
// ══════════════════════════════════════════════════════════════════════════════

// Compose renders a payload into the operator message text for its kind.
func Compose(p notification.Payload) string {
	switch v := p.(type) {
	case notification.NewAppointment:
		return composeNewAppointment(v)
	case notification.StatusChanged:
		return composeStatusChanged(v)
	case notification.ConfirmedWithTime:
		return composeConfirmedWithTime(v)
	case notification.Reminder:
		return composeReminder(v)
	case notification.PatientCreated:
		return composePatientCreated(v)
	case notification.DailySummary:
		return composeDailySummary(v)
	default:
		// The payload set is closed; this is only reachable from a payload
		// type added without a renderer.
		return fmt.Sprintf("notification %s", p.Kind())
	}
}

const placeholder = "—"

// orPlaceholder substitutes missing optional fields so renderers stay total.
func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func composeNewAppointment(p notification.NewAppointment) string {
	a := p.Appointment
	var b strings.Builder
	b.WriteString("🆕 New appointment request\n\n")
	fmt.Fprintf(&b, "Patient: %s\n", orPlaceholder(a.Name))
	fmt.Fprintf(&b, "Phone: %s\n", orPlaceholder(a.Phone))
	fmt.Fprintf(&b, "Email: %s\n", orPlaceholder(a.Email))
	fmt.Fprintf(&b, "Service: %s\n", orPlaceholder(a.ServiceName))
	fmt.Fprintf(&b, "Preferred date: %s\n", timeutil.FormatDate(a.PreferredDate))
	if strings.TrimSpace(a.Message) != "" {
		fmt.Fprintf(&b, "Comment: %s\n", a.Message)
	}
	fmt.Fprintf(&b, "\nRequest #%d", a.ID)
	return b.String()
}

func composeStatusChanged(p notification.StatusChanged) string {
	a := p.Appointment
	var b strings.Builder
	b.WriteString("🔄 Appointment status changed\n\n")
	fmt.Fprintf(&b, "Patient: %s\n", orPlaceholder(a.Name))
	fmt.Fprintf(&b, "Service: %s\n", orPlaceholder(a.ServiceName))
	fmt.Fprintf(&b, "Status: %s → %s\n", orPlaceholder(p.OldStatus), orPlaceholder(p.NewStatus))
	fmt.Fprintf(&b, "\nRequest #%d", a.ID)
	return b.String()
}

func composeConfirmedWithTime(p notification.ConfirmedWithTime) string {
	a := p.Appointment
	var b strings.Builder
	b.WriteString("✅ Appointment confirmed\n\n")
	fmt.Fprintf(&b, "Patient: %s\n", orPlaceholder(a.Name))
	fmt.Fprintf(&b, "Phone: %s\n", orPlaceholder(a.Phone))
	fmt.Fprintf(&b, "Service: %s\n", orPlaceholder(a.ServiceName))
	fmt.Fprintf(&b, "Date: %s\n", timeutil.FormatDate(a.PreferredDate))
	fmt.Fprintf(&b, "Time: %s\n", timeutil.AppointmentTime(a.Time, a.PreferredDate))
	fmt.Fprintf(&b, "\nRequest #%d", a.ID)
	return b.String()
}

func composeReminder(p notification.Reminder) string {
	a := p.Appointment
	var b strings.Builder
	b.WriteString("⏰ Upcoming appointment\n\n")
	fmt.Fprintf(&b, "Patient: %s\n", orPlaceholder(a.Name))
	fmt.Fprintf(&b, "Phone: %s\n", orPlaceholder(a.Phone))
	fmt.Fprintf(&b, "Service: %s\n", orPlaceholder(a.ServiceName))
	fmt.Fprintf(&b, "Date: %s\n", timeutil.FormatDate(a.PreferredDate))
	fmt.Fprintf(&b, "Time: %s\n", timeutil.AppointmentTime(a.Time, a.PreferredDate))
	fmt.Fprintf(&b, "\nRequest #%d", a.ID)
	return b.String()
}

func composePatientCreated(p notification.PatientCreated) string {
	var b strings.Builder
	b.WriteString("👤 New patient record\n\n")
	fmt.Fprintf(&b, "Name: %s\n", orPlaceholder(p.FullName))
	fmt.Fprintf(&b, "Phone: %s\n", orPlaceholder(p.Phone))
	fmt.Fprintf(&b, "Service: %s\n", orPlaceholder(p.ServiceName))
	if p.AppointmentID != 0 {
		fmt.Fprintf(&b, "From request #%d\n", p.AppointmentID)
	}
	fmt.Fprintf(&b, "\nPatient #%d", p.PatientID)
	return b.String()
}

func composeDailySummary(p notification.DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily summary for %s\n\n", timeutil.FormatDate(p.Date))
	fmt.Fprintf(&b, "New requests: %d\n", p.NewAppointments)
	fmt.Fprintf(&b, "Confirmed visits: %d\n", p.ConfirmedVisits)
	fmt.Fprintf(&b, "Cancellations: %d\n", p.CancelledVisits)
	fmt.Fprintf(&b, "New patients: %d\n", p.NewPatients)
	fmt.Fprintf(&b, "Inbound messages: %d", p.InboundMessages)
	return b.String()
}
