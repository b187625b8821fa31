package models

import "time"

// EntryDateLayout is the calendar-date format medical entries carry. Entries
// have a day but no time of day.
const EntryDateLayout = "2006-01-02"

// MedicalEntry represents one entry in a patient's medical history.
type MedicalEntry struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	Date      string `json:"date"` // "YYYY-MM-DD"
	Notes     string `json:"notes"`
}

// ParseEntryDate parses a medical-entry date. It tolerates both the bare
// calendar form and a full RFC 3339 timestamp, since older remote records had
// their dates written as timestamp strings.
func ParseEntryDate(s string) (time.Time, error) {
	if t, err := time.Parse(EntryDateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
