package models

import (
	"fmt"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "programada"
	StatusCompleted AppointmentStatus = "completada"
	StatusCancelled AppointmentStatus = "cancelada"
)

// Appointment represents a scheduled appointment for a patient.
//
// PatientName is a denormalized copy of the referenced patient's full name.
// The store recomputes it from the current patient record on every add and
// update, so it only goes stale if the patient is renamed afterwards.
// PatientID cannot be reassigned once the appointment exists.
type Appointment struct {
	ID          string            `json:"id"`
	PatientID   string            `json:"patientId"`
	PatientName string            `json:"patientName,omitempty"`
	Date        time.Time         `json:"date"`
	Reason      string            `json:"reason"`
	Status      AppointmentStatus `json:"status"`
}

// CombineDateTime assembles the single appointment date-time from a calendar
// day and an "HH:MM" time of day, in the day's location.
func CombineDateTime(day time.Time, hhmm string) (time.Time, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hours, &minutes); err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM: %w", hhmm, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM", hhmm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hours, minutes, 0, 0, day.Location()), nil
}
