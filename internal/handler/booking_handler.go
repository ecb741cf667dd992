package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/service"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/export"
	"github.com/slotwise/booking-api/pkg/response"
)

// BookingHandler wires slot resolution and booking routes.
type BookingHandler struct {
	bookings *service.BookingService
	slots    *service.SlotService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingService, slots *service.SlotService) *BookingHandler {
	return &BookingHandler{bookings: bookings, slots: slots}
}

// AvailableSlots godoc
// @Summary List free slots of an instructor for a date
// @Tags Bookings
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /available-slots/{instructorId}/{date} [get]
func (h *BookingHandler) AvailableSlots(c *gin.Context) {
	slots, err := h.slots.Resolve(c.Request.Context(), c.Param("instructorId"), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	response.JSON(c, http.StatusOK, slots)
}

// Book godoc
// @Summary Book a slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.BookRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Book(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	booking, err := h.bookings.Book(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// InstructorBookings godoc
// @Summary List the caller's bookings grouped by date and slot
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) InstructorBookings(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grouped, err := h.bookings.InstructorBookings(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grouped)
}

// StudentBookings godoc
// @Summary List the caller's bookings across all instructors
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student-bookings [get]
func (h *BookingHandler) StudentBookings(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	bookings, err := h.bookings.StudentBookings(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings)
}

// Export godoc
// @Summary Download the caller's bookings as CSV or PDF
// @Tags Bookings
// @Produce octet-stream
// @Param format query string false "csv or pdf (default csv)"
// @Success 200
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	table, err := h.bookings.ExportTable(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("bookings-%s", time.Now().UTC().Format("20060102"))
	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		payload, err := export.RenderPDF(table, "Bookings")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", filename))
		c.Data(http.StatusOK, "application/pdf", payload)
	case "csv":
		payload, err := export.RenderCSV(table)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
		c.Data(http.StatusOK, "text/csv", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
