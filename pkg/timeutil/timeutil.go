// Package timeutil provides date and time formatting for appointment
// notifications. The clinic operates in a single timezone; all operator-facing
// dates are rendered in it regardless of how timestamps are stored.
// No external dependencies - uses only standard library.
package timeutil

import (
	"strings"
	"time"
)

// ClinicTZ is the clinic's timezone (UTC+3, no DST).
var ClinicTZ = time.FixedZone("Europe/Moscow", 3*60*60)

// Now returns the current time in the clinic timezone.
func Now() time.Time {
	return time.Now().In(ClinicTZ)
}

// ToClinic converts a time to the clinic timezone.
func ToClinic(t time.Time) time.Time {
	return t.In(ClinicTZ)
}

// FormatDate renders a date as "02.01.2006" for operator messages.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return ToClinic(t).Format("02.01.2006")
}

// FormatDateTime renders "02.01.2006 15:04".
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return ToClinic(t).Format("02.01.2006 15:04")
}

// AppointmentTime renders the visit time for an appointment: the stored time
// string when the operator entered one, otherwise a time derived from the
// stored date. Confirmed appointments always carry the explicit string.
func AppointmentTime(timeStr string, date time.Time) string {
	if s := strings.TrimSpace(timeStr); s != "" {
		return s
	}
	if date.IsZero() {
		return "—"
	}
	return ToClinic(date).Format("15:04")
}

// StartOfDay returns 00:00:00 of t's day in the clinic timezone.
func StartOfDay(t time.Time) time.Time {
	ct := ToClinic(t)
	return time.Date(ct.Year(), ct.Month(), ct.Day(), 0, 0, 0, 0, ClinicTZ)
}

// EndOfDay returns 23:59:59.999999999 of t's day in the clinic timezone.
func EndOfDay(t time.Time) time.Time {
	ct := ToClinic(t)
	return time.Date(ct.Year(), ct.Month(), ct.Day(), 23, 59, 59, 999999999, ClinicTZ)
}
