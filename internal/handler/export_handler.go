package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/service"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/response"
)

// ExportHandler manages asynchronous booking export jobs.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

type createExportRequest struct {
	Format string `json:"format"`
}

// Create godoc
// @Summary Queue a booking export for background rendering
// @Tags Bookings
// @Accept json
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /bookings/export-jobs [post]
func (h *ExportHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := createExportRequest{Format: "csv"}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
			return
		}
	}

	job, err := h.exports.Enqueue(claims.UserID, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job)
}

// Status godoc
// @Summary Check the state of a queued export
// @Tags Bookings
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/export-jobs/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.exports.Job(c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// Download godoc
// @Summary Download a finished export using its signed token
// @Tags Bookings
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	path, filename, err := h.exports.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filename)
}
