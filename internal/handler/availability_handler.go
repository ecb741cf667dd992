package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/service"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/response"
)

// setAvailabilityRequest covers both one-time and recurring declarations; the
// recurring block wins when present, mirroring the POST contract.
type setAvailabilityRequest struct {
	Date      string                    `json:"date"`
	TimeSlots []string                  `json:"timeSlots"`
	Recurring *service.RecurringRequest `json:"recurring"`
}

type updateAvailabilityRequest struct {
	Date      string   `json:"date" binding:"required"`
	TimeSlots []string `json:"timeSlots"`
}

type deleteAvailabilityRequest struct {
	Date         string `json:"date"`
	TimeSlot     string `json:"timeSlot"`
	RecurringKey string `json:"recurringKey"`
}

// AvailabilityHandler wires availability management to HTTP routes. All
// writes operate on the caller's own record.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// Set godoc
// @Summary Set one-time or recurring availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body setAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Router /availability [post]
func (h *AvailabilityHandler) Set(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}

	if req.Recurring != nil {
		id, err := h.availability.AddRecurring(c.Request.Context(), claims.UserID, *req.Recurring)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"recurringKey": id})
		return
	}

	if err := h.availability.SetOneTime(c.Request.Context(), claims.UserID, req.Date, req.TimeSlots); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "availability set successfully")
}

// Update godoc
// @Summary Replace one-time slots for a date
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body updateAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Router /availability [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req updateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}

	if err := h.availability.SetOneTime(c.Request.Context(), claims.UserID, req.Date, req.TimeSlots); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "availability updated successfully")
}

// Delete godoc
// @Summary Delete availability by most-specific key
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body deleteAvailabilityRequest true "Deletion selector"
// @Success 200 {object} response.Envelope
// @Router /availability [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req deleteAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.RecurringKey != "":
		if err := h.availability.RemoveRecurring(ctx, claims.UserID, req.RecurringKey); err != nil {
			response.Error(c, err)
			return
		}
	case req.TimeSlot != "" && req.Date != "":
		if err := h.availability.RemoveOneTime(ctx, claims.UserID, req.Date, req.TimeSlot); err != nil {
			response.Error(c, err)
			return
		}
	case req.Date != "":
		if err := h.availability.RemoveOneTime(ctx, claims.UserID, req.Date, ""); err != nil {
			response.Error(c, err)
			return
		}
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request parameters"))
		return
	}
	response.Message(c, http.StatusOK, "availability deleted successfully")
}

// BulkEdit godoc
// @Summary Bulk add or remove recurring availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.BulkEditRequest true "Bulk edit payload"
// @Success 200 {object} response.Envelope
// @Router /availability/bulk [put]
func (h *AvailabilityHandler) BulkEdit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk edit payload"))
		return
	}

	if err := h.availability.BulkEdit(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "bulk availability applied successfully")
}

// Get godoc
// @Summary Get the caller's availability record
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.availability.Record(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// GetForInstructor godoc
// @Summary Get a verified instructor's availability record
// @Tags Availability
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/availability [get]
func (h *AvailabilityHandler) GetForInstructor(c *gin.Context) {
	record, err := h.availability.RecordOfInstructor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}
