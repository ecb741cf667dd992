package models

import "time"

// RecurringEntry is a weekday-scoped availability rule, independent of any
// calendar date. DayOfWeek follows time.Weekday numbering: 0=Sunday.
type RecurringEntry struct {
	ID           string    `db:"id" json:"-"`
	InstructorID string    `db:"instructor_id" json:"-"`
	DayOfWeek    int       `db:"day_of_week" json:"dayOfWeek"`
	StartTime    string    `db:"start_time" json:"startTime"`
	EndTime      string    `db:"end_time" json:"endTime"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}

// Label renders the slot label the entry contributes on a matching day.
func (e RecurringEntry) Label() string {
	return e.StartTime + "-" + e.EndTime
}

// DateSlot is one stored slot of a one-time date list. Position keeps the
// caller-supplied ordering so lists round-trip exactly.
type DateSlot struct {
	InstructorID string `db:"instructor_id"`
	Date         string `db:"date"`
	Position     int    `db:"position"`
	Slot         string `db:"slot"`
}

// AvailabilityRecord is the full declared availability of one instructor.
// Dates maps ISO date strings to ordered slot label lists; Recurring maps
// entry ids to their rules.
type AvailabilityRecord struct {
	Dates     map[string][]string       `json:"dates"`
	Recurring map[string]RecurringEntry `json:"recurring"`
}

// EmptyAvailabilityRecord returns a record with no declarations. Lookups for
// unknown instructors yield this instead of a not-found error.
func EmptyAvailabilityRecord() AvailabilityRecord {
	return AvailabilityRecord{
		Dates:     map[string][]string{},
		Recurring: map[string]RecurringEntry{},
	}
}
