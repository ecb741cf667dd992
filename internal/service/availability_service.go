package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type availabilityRepository interface {
	ReplaceDateSlots(ctx context.Context, instructorID, date string, slots []string) error
	DeleteDateSlot(ctx context.Context, instructorID, date, slot string) error
	DeleteDate(ctx context.Context, instructorID, date string) error
	AddRecurring(ctx context.Context, entry *models.RecurringEntry) (string, error)
	RemoveRecurring(ctx context.Context, instructorID, entryID string) error
	RemoveRecurringMatching(ctx context.Context, instructorID string, dayOfWeek int, startTime, endTime string) (int64, error)
	GetRecord(ctx context.Context, instructorID string) (models.AvailabilityRecord, error)
}

type instructorFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RecurringRequest declares a weekday rule. DayOfWeek is 0=Sunday..6=Saturday.
type RecurringRequest struct {
	DayOfWeek *int   `json:"dayOfWeek" validate:"required,min=0,max=6"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// BulkEditRequest adds or removes recurring rules by exact value.
type BulkEditRequest struct {
	Action    string `json:"action" validate:"required,oneof=add remove"`
	DayOfWeek *int   `json:"dayOfWeek" validate:"required,min=0,max=6"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// AvailabilityService manages instructor availability declarations. Slot
// labels are opaque strings; the service never checks for overlap between
// declarations.
type AvailabilityService struct {
	repo      availabilityRepository
	users     instructorFinder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, users instructorFinder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, users: users, cache: cache, validator: validate, logger: logger}
}

// SetOneTime replaces the full slot list for one date.
func (s *AvailabilityService) SetOneTime(ctx context.Context, instructorID, date string, slots []string) error {
	if err := validateDate(date); err != nil {
		return err
	}
	for _, slot := range slots {
		if !strings.Contains(slot, "-") {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("time slot %q is missing a separator", slot))
		}
	}

	if err := s.repo.ReplaceDateSlots(ctx, instructorID, date, slots); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store availability")
	}
	s.invalidateDate(ctx, instructorID, date)
	return nil
}

// AddRecurring appends a weekday rule and returns its generated id.
func (s *AvailabilityService) AddRecurring(ctx context.Context, instructorID string, req RecurringRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring payload")
	}

	entry := &models.RecurringEntry{
		InstructorID: instructorID,
		DayOfWeek:    *req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}
	id, err := s.repo.AddRecurring(ctx, entry)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store recurring availability")
	}
	s.invalidateAll(ctx, instructorID)
	return id, nil
}

// RemoveRecurring deletes one rule by id. Removing an unknown id succeeds
// silently; a second identical call is a no-op.
func (s *AvailabilityService) RemoveRecurring(ctx context.Context, instructorID, entryID string) error {
	if strings.TrimSpace(entryID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "recurring key is required")
	}
	if err := s.repo.RemoveRecurring(ctx, instructorID, entryID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete recurring availability")
	}
	s.invalidateAll(ctx, instructorID)
	return nil
}

// RemoveOneTime deletes one slot from a date's list when slot is non-empty,
// otherwise the whole date entry.
func (s *AvailabilityService) RemoveOneTime(ctx context.Context, instructorID, date, slot string) error {
	if err := validateDate(date); err != nil {
		return err
	}
	var err error
	if slot != "" {
		err = s.repo.DeleteDateSlot(ctx, instructorID, date, slot)
	} else {
		err = s.repo.DeleteDate(ctx, instructorID, date)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete availability")
	}
	s.invalidateDate(ctx, instructorID, date)
	return nil
}

// BulkEdit adds one recurring rule or removes every rule matching the exact
// (dayOfWeek, startTime, endTime) triple.
func (s *AvailabilityService) BulkEdit(ctx context.Context, instructorID string, req BulkEditRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk edit payload")
	}

	switch req.Action {
	case "add":
		entry := &models.RecurringEntry{
			InstructorID: instructorID,
			DayOfWeek:    *req.DayOfWeek,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
		}
		if _, err := s.repo.AddRecurring(ctx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store recurring availability")
		}
	case "remove":
		removed, err := s.repo.RemoveRecurringMatching(ctx, instructorID, *req.DayOfWeek, req.StartTime, req.EndTime)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to remove recurring availability")
		}
		s.logger.Debug("bulk removed recurring entries",
			zap.String("instructor_id", instructorID),
			zap.Int64("removed", removed))
	}
	s.invalidateAll(ctx, instructorID)
	return nil
}

// Record returns the caller's full availability record. Unknown instructors
// get an empty record, never a not-found error.
func (s *AvailabilityService) Record(ctx context.Context, instructorID string) (models.AvailabilityRecord, error) {
	record, err := s.repo.GetRecord(ctx, instructorID)
	if err != nil {
		return record, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load availability")
	}
	return record, nil
}

// RecordOfInstructor returns the availability of a verified instructor for
// student browsing. The target must exist and hold the instructor role.
func (s *AvailabilityService) RecordOfInstructor(ctx context.Context, instructorID string) (models.AvailabilityRecord, error) {
	user, err := s.users.FindByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EmptyAvailabilityRecord(), appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return models.EmptyAvailabilityRecord(), appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load instructor")
	}
	if user.Role != models.RoleInstructor {
		return models.EmptyAvailabilityRecord(), appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
	}
	return s.Record(ctx, instructorID)
}

func (s *AvailabilityService) invalidateDate(ctx context.Context, instructorID, date string) {
	if err := s.cache.Invalidate(ctx, slotCacheKey(instructorID, date)); err != nil {
		s.logger.Warn("slot cache invalidation failed", zap.String("instructor_id", instructorID), zap.Error(err))
	}
}

func (s *AvailabilityService) invalidateAll(ctx context.Context, instructorID string) {
	if err := s.cache.Invalidate(ctx, slotCacheKey(instructorID, "*")); err != nil {
		s.logger.Warn("slot cache invalidation failed", zap.String("instructor_id", instructorID), zap.Error(err))
	}
}

func slotCacheKey(instructorID, date string) string {
	return fmt.Sprintf("slots:%s:%s", instructorID, date)
}

func validateDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date %q is not a valid YYYY-MM-DD date", date))
	}
	return nil
}
