package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type slotAvailabilityRepository interface {
	ListDateSlots(ctx context.Context, instructorID, date string) ([]string, error)
	ListRecurring(ctx context.Context, instructorID string) ([]models.RecurringEntry, error)
}

type bookedSlotLister interface {
	ListBookedSlots(ctx context.Context, instructorID, date string) ([]string, error)
}

// SlotService resolves the bookable slots of an instructor for a date by
// merging one-time and recurring declarations and dropping booked labels.
type SlotService struct {
	availability slotAvailabilityRepository
	bookings     bookedSlotLister
	cache        *CacheService
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// NewSlotService constructs a SlotService.
func NewSlotService(availability slotAvailabilityRepository, bookings bookedSlotLister, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{availability: availability, bookings: bookings, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Resolve returns the free slots for display: one-time slots in stored order,
// then matching recurring labels in insertion order, minus booked labels.
// Duplicate labels from overlapping declarations are preserved as separate
// entries; the result is a concatenation, not a set union.
func (s *SlotService) Resolve(ctx context.Context, instructorID, date string) ([]string, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}

	key := slotCacheKey(instructorID, date)
	var cached []string
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	declared, err := s.ResolveDeclared(ctx, instructorID, date)
	if err != nil {
		return nil, err
	}

	booked, err := s.bookings.ListBookedSlots(ctx, instructorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load bookings")
	}
	bookedSet := make(map[string]struct{}, len(booked))
	for _, slot := range booked {
		bookedSet[slot] = struct{}{}
	}

	free := make([]string, 0, len(declared))
	for _, slot := range declared {
		if _, taken := bookedSet[slot]; !taken {
			free = append(free, slot)
		}
	}

	if err := s.cache.Set(ctx, key, free, s.cacheTTL); err != nil {
		s.logger.Debug("slot cache write failed", zap.String("key", key), zap.Error(err))
	}

	return free, nil
}

// ResolveDeclared returns the declared slots for a date ignoring bookings.
// The booking coordinator uses this at commit time to check that a slot was
// declared available; it never reads the cache so the check stays fresh.
func (s *SlotService) ResolveDeclared(ctx context.Context, instructorID, date string) ([]string, error) {
	day, err := weekdayOf(date)
	if err != nil {
		return nil, err
	}

	slots, err := s.availability.ListDateSlots(ctx, instructorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load availability")
	}

	entries, err := s.availability.ListRecurring(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load recurring availability")
	}
	for _, entry := range entries {
		if entry.DayOfWeek == day {
			slots = append(slots, entry.Label())
		}
	}

	return slots, nil
}

// weekdayOf computes the calendar weekday of an ISO date, 0=Sunday. The date
// string is interpreted as-is with no timezone conversion.
func weekdayOf(date string) (int, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "date must be a valid YYYY-MM-DD date")
	}
	return int(t.Weekday()), nil
}
