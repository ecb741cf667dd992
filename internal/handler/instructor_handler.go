package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/response"
)

type instructorLister interface {
	ListInstructors(ctx context.Context) ([]models.InstructorInfo, error)
}

// InstructorHandler serves the instructor directory for students.
type InstructorHandler struct {
	users instructorLister
}

// NewInstructorHandler constructs an InstructorHandler.
func NewInstructorHandler(users instructorLister) *InstructorHandler {
	return &InstructorHandler{users: users}
}

// List godoc
// @Summary List instructors available for booking
// @Tags Instructors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *InstructorHandler) List(c *gin.Context) {
	instructors, err := h.users.ListInstructors(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list instructors"))
		return
	}
	if instructors == nil {
		instructors = []models.InstructorInfo{}
	}
	response.JSON(c, http.StatusOK, instructors)
}
