package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/slotwise/booking-api/internal/models"
)

// ErrSlotTaken reports that the (instructor, date, slot) key already holds a
// booking. It is the only signal the conditional insert emits on conflict.
var ErrSlotTaken = errors.New("slot already booked")

// BookingRepository persists confirmed bookings keyed by
// (instructor_id, date, time_slot).
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts the booking only if its key is still free. The insert and
// the existence check are a single statement; of N concurrent attempts on
// one key exactly one row wins and the rest observe ErrSlotTaken.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bookings (instructor_id, date, time_slot, student_id, purpose, prerequisites, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (instructor_id, date, time_slot) DO NOTHING
RETURNING instructor_id`
	var inserted string
	err := r.db.QueryRowxContext(ctx, query,
		booking.InstructorID,
		booking.Date,
		booking.TimeSlot,
		booking.StudentID,
		booking.Purpose,
		booking.Prerequisites,
		booking.Status,
		booking.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrSlotTaken
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// Exists reports whether a booking holds the given key.
func (r *BookingRepository) Exists(ctx context.Context, instructorID, date, timeSlot string) (bool, error) {
	const query = `SELECT 1 FROM bookings WHERE instructor_id = $1 AND date = $2 AND time_slot = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, instructorID, date, timeSlot); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check booking: %w", err)
	}
	return true, nil
}

// ListBookedSlots returns the slot labels booked for an instructor on a date.
func (r *BookingRepository) ListBookedSlots(ctx context.Context, instructorID, date string) ([]string, error) {
	const query = `SELECT time_slot FROM bookings WHERE instructor_id = $1 AND date = $2`
	var slots []string
	if err := r.db.SelectContext(ctx, &slots, query, instructorID, date); err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	return slots, nil
}

// ListByInstructor returns all bookings of one instructor ordered by date and
// slot label.
func (r *BookingRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Booking, error) {
	const query = `SELECT instructor_id, date, time_slot, student_id, purpose, prerequisites, status, created_at
FROM bookings WHERE instructor_id = $1 ORDER BY date, time_slot`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, instructorID); err != nil {
		return nil, fmt.Errorf("list bookings by instructor: %w", err)
	}
	return bookings, nil
}

// ListByStudent scans all bookings for one student. This walks the whole
// table; a student_id index would be the first thing to add at scale.
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Booking, error) {
	const query = `SELECT instructor_id, date, time_slot, student_id, purpose, prerequisites, status, created_at
FROM bookings WHERE student_id = $1 ORDER BY date, time_slot`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, studentID); err != nil {
		return nil, fmt.Errorf("list bookings by student: %w", err)
	}
	return bookings, nil
}
