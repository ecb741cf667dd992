package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/slotwise/booking-api/internal/models"
)

// AvailabilityRepository persists one-time date slot lists and recurring
// weekday rules per instructor.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ReplaceDateSlots swaps the full slot list for one date. The stored order is
// the caller-supplied order; an empty list clears the date.
func (r *AvailabilityRepository) ReplaceDateSlots(ctx context.Context, instructorID, date string, slots []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace slots: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_slots WHERE instructor_id = $1 AND date = $2`, instructorID, date); err != nil {
		return fmt.Errorf("clear date slots: %w", err)
	}

	const insert = `INSERT INTO availability_slots (instructor_id, date, position, slot) VALUES ($1, $2, $3, $4)`
	for i, slot := range slots {
		if _, err := tx.ExecContext(ctx, insert, instructorID, date, i, slot); err != nil {
			return fmt.Errorf("insert date slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace slots: %w", err)
	}
	committed = true
	return nil
}

// ListDateSlots returns the stored slot list for a date in insertion order.
func (r *AvailabilityRepository) ListDateSlots(ctx context.Context, instructorID, date string) ([]string, error) {
	const query = `SELECT slot FROM availability_slots WHERE instructor_id = $1 AND date = $2 ORDER BY position`
	var slots []string
	if err := r.db.SelectContext(ctx, &slots, query, instructorID, date); err != nil {
		return nil, fmt.Errorf("list date slots: %w", err)
	}
	return slots, nil
}

// DeleteDateSlot removes one slot label from a date's list. Removing an
// absent label is a no-op.
func (r *AvailabilityRepository) DeleteDateSlot(ctx context.Context, instructorID, date, slot string) error {
	const query = `DELETE FROM availability_slots WHERE instructor_id = $1 AND date = $2 AND slot = $3`
	if _, err := r.db.ExecContext(ctx, query, instructorID, date, slot); err != nil {
		return fmt.Errorf("delete date slot: %w", err)
	}
	return nil
}

// DeleteDate removes the whole slot list for a date.
func (r *AvailabilityRepository) DeleteDate(ctx context.Context, instructorID, date string) error {
	const query = `DELETE FROM availability_slots WHERE instructor_id = $1 AND date = $2`
	if _, err := r.db.ExecContext(ctx, query, instructorID, date); err != nil {
		return fmt.Errorf("delete date: %w", err)
	}
	return nil
}

// AddRecurring appends a recurring rule with a freshly generated id and
// returns the id.
func (r *AvailabilityRepository) AddRecurring(ctx context.Context, entry *models.RecurringEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO recurring_availability (id, instructor_id, day_of_week, start_time, end_time, created_at)
		VALUES (:id, :instructor_id, :day_of_week, :start_time, :end_time, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return "", fmt.Errorf("add recurring entry: %w", err)
	}
	return entry.ID, nil
}

// RemoveRecurring deletes one recurring rule by id. Deleting an unknown id is
// a no-op, not an error.
func (r *AvailabilityRepository) RemoveRecurring(ctx context.Context, instructorID, entryID string) error {
	const query = `DELETE FROM recurring_availability WHERE instructor_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, instructorID, entryID); err != nil {
		return fmt.Errorf("remove recurring entry: %w", err)
	}
	return nil
}

// RemoveRecurringMatching deletes every recurring rule matching the exact
// (dayOfWeek, startTime, endTime) triple and returns how many were removed.
func (r *AvailabilityRepository) RemoveRecurringMatching(ctx context.Context, instructorID string, dayOfWeek int, startTime, endTime string) (int64, error) {
	const query = `DELETE FROM recurring_availability WHERE instructor_id = $1 AND day_of_week = $2 AND start_time = $3 AND end_time = $4`
	res, err := r.db.ExecContext(ctx, query, instructorID, dayOfWeek, startTime, endTime)
	if err != nil {
		return 0, fmt.Errorf("remove matching recurring entries: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count removed recurring entries: %w", err)
	}
	return removed, nil
}

// ListRecurring returns an instructor's recurring rules in insertion order.
func (r *AvailabilityRepository) ListRecurring(ctx context.Context, instructorID string) ([]models.RecurringEntry, error) {
	const query = `SELECT id, instructor_id, day_of_week, start_time, end_time, created_at FROM recurring_availability WHERE instructor_id = $1 ORDER BY created_at, id`
	var entries []models.RecurringEntry
	if err := r.db.SelectContext(ctx, &entries, query, instructorID); err != nil {
		return nil, fmt.Errorf("list recurring entries: %w", err)
	}
	return entries, nil
}

// GetRecord assembles the full availability record of one instructor. An
// instructor with no declarations yields an empty record, never not-found.
func (r *AvailabilityRepository) GetRecord(ctx context.Context, instructorID string) (models.AvailabilityRecord, error) {
	record := models.EmptyAvailabilityRecord()

	const datesQuery = `SELECT instructor_id, date, position, slot FROM availability_slots WHERE instructor_id = $1 ORDER BY date, position`
	var rows []models.DateSlot
	if err := r.db.SelectContext(ctx, &rows, datesQuery, instructorID); err != nil {
		return record, fmt.Errorf("load date slots: %w", err)
	}
	for _, row := range rows {
		record.Dates[row.Date] = append(record.Dates[row.Date], row.Slot)
	}

	entries, err := r.ListRecurring(ctx, instructorID)
	if err != nil {
		return record, err
	}
	for _, entry := range entries {
		record.Recurring[entry.ID] = entry
	}

	return record, nil
}
