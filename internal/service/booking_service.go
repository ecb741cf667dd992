package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/internal/repository"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/export"
)

type bookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Booking, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Booking, error)
}

type slotResolver interface {
	ResolveDeclared(ctx context.Context, instructorID, date string) ([]string, error)
}

// BookRequest is the payload for reserving a slot.
type BookRequest struct {
	InstructorID  string `json:"instructorId" validate:"required"`
	Date          string `json:"date" validate:"required"`
	TimeSlot      string `json:"timeSlot" validate:"required"`
	Purpose       string `json:"purpose" validate:"required"`
	Prerequisites string `json:"prerequisites"`
}

// BookingService coordinates slot reservations: it validates the request,
// re-derives declared availability, and commits through the ledger's
// conditional insert.
type BookingService struct {
	bookings  bookingRepository
	users     instructorFinder
	resolver  slotResolver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(bookings bookingRepository, users instructorFinder, resolver slotResolver, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:  bookings,
		users:     users,
		resolver:  resolver,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Book reserves a slot for the student. Payload validation happens before any
// storage access; the existence check and the write are one conditional
// insert, so of N concurrent attempts on the same key exactly one succeeds.
func (s *BookingService) Book(ctx context.Context, studentID string, req BookRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "missing required fields")
	}
	if strings.TrimSpace(req.Purpose) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purpose is required")
	}
	if err := validateDate(req.Date); err != nil {
		return nil, err
	}

	instructor, err := s.users.FindByID(ctx, req.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load instructor")
	}
	if instructor.Role != models.RoleInstructor {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
	}

	declared, err := s.resolver.ResolveDeclared(ctx, req.InstructorID, req.Date)
	if err != nil {
		return nil, err
	}
	if !containsSlot(declared, req.TimeSlot) {
		return nil, appErrors.Clone(appErrors.ErrSlotNotAvailable, "")
	}

	booking := &models.Booking{
		InstructorID:  req.InstructorID,
		Date:          req.Date,
		TimeSlot:      req.TimeSlot,
		StudentID:     studentID,
		Purpose:       req.Purpose,
		Prerequisites: req.Prerequisites,
		Status:        models.BookingConfirmed,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.metrics.RecordBookingConflict()
			return nil, appErrors.Clone(appErrors.ErrSlotAlreadyBooked, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store booking")
	}

	s.metrics.RecordBooking()
	if err := s.cache.Invalidate(ctx, slotCacheKey(req.InstructorID, req.Date)); err != nil {
		s.logger.Warn("slot cache invalidation failed", zap.String("instructor_id", req.InstructorID), zap.Error(err))
	}

	s.logger.Info("booking confirmed",
		zap.String("instructor_id", booking.InstructorID),
		zap.String("date", booking.Date),
		zap.String("time_slot", booking.TimeSlot),
		zap.String("student_id", booking.StudentID))

	return booking, nil
}

// InstructorBookings returns an instructor's bookings grouped as
// date -> slot -> booking, mirroring the ledger's key structure.
func (s *BookingService) InstructorBookings(ctx context.Context, instructorID string) (map[string]map[string]models.Booking, error) {
	bookings, err := s.bookings.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load bookings")
	}
	grouped := make(map[string]map[string]models.Booking, len(bookings))
	for _, booking := range bookings {
		byDate, ok := grouped[booking.Date]
		if !ok {
			byDate = make(map[string]models.Booking)
			grouped[booking.Date] = byDate
		}
		byDate[booking.TimeSlot] = booking
	}
	return grouped, nil
}

// StudentBookings returns every booking made by the student.
func (s *BookingService) StudentBookings(ctx context.Context, studentID string) ([]models.Booking, error) {
	bookings, err := s.bookings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// ExportTable flattens an instructor's bookings into a tabular layout for the
// CSV and PDF renderers.
func (s *BookingService) ExportTable(ctx context.Context, instructorID string) (export.Table, error) {
	bookings, err := s.bookings.ListByInstructor(ctx, instructorID)
	if err != nil {
		return export.Table{}, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load bookings")
	}

	table := export.Table{
		Columns: []string{"Date", "Time Slot", "Student", "Purpose", "Prerequisites", "Status", "Booked At"},
		Rows:    make([][]string, 0, len(bookings)),
	}
	for _, booking := range bookings {
		table.Rows = append(table.Rows, []string{
			booking.Date,
			booking.TimeSlot,
			booking.StudentID,
			booking.Purpose,
			booking.Prerequisites,
			string(booking.Status),
			booking.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return table, nil
}

func containsSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
