package models

import "time"

// BookingStatus enumerates booking lifecycle states. Only confirmed is ever
// written today; cancelled is reserved for a future cancellation flow.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is one confirmed reservation of an instructor's slot. The
// (InstructorID, Date, TimeSlot) triple is the primary key; at most one row
// may exist per key.
type Booking struct {
	InstructorID  string        `db:"instructor_id" json:"instructorId"`
	Date          string        `db:"date" json:"date"`
	TimeSlot      string        `db:"time_slot" json:"timeSlot"`
	StudentID     string        `db:"student_id" json:"studentId"`
	Purpose       string        `db:"purpose" json:"purpose"`
	Prerequisites string        `db:"prerequisites" json:"prerequisites"`
	Status        BookingStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"bookedAt"`
}
