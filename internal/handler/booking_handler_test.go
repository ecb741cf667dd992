package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookPayload() gin.H {
	return gin.H{
		"instructorId": "i1",
		"date":         "2026-09-14",
		"timeSlot":     "10:00-11:00",
		"purpose":      "algebra help",
	}
}

func TestAvailableSlotsEmptyIsJSONArray(t *testing.T) {
	fx := newHandlerFixture()

	c, w := testContext(t, http.MethodGet, "/available-slots/i1/2026-09-14", nil, studentClaims())
	c.Params = gin.Params{{Key: "instructorId", Value: "i1"}, {Key: "date", Value: "2026-09-14"}}
	fx.booking.AvailableSlots(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestAvailableSlotsRejectsBadDate(t *testing.T) {
	fx := newHandlerFixture()

	c, w := testContext(t, http.MethodGet, "/available-slots/i1/monday", nil, studentClaims())
	c.Params = gin.Params{{Key: "instructorId", Value: "i1"}, {Key: "date", Value: "monday"}}
	fx.booking.AvailableSlots(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookCreated(t *testing.T) {
	fx := newHandlerFixture()
	require.NoError(t, fx.store.ReplaceDateSlots(context.Background(), "i1", "2026-09-14", []string{"10:00-11:00"}))

	c, w := testContext(t, http.MethodPost, "/bookings", bookPayload(), studentClaims())
	fx.booking.Book(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, fx.store.bookings, 1)
}

func TestBookConflictReturns409(t *testing.T) {
	fx := newHandlerFixture()
	require.NoError(t, fx.store.ReplaceDateSlots(context.Background(), "i1", "2026-09-14", []string{"10:00-11:00"}))

	c, w := testContext(t, http.MethodPost, "/bookings", bookPayload(), studentClaims())
	fx.booking.Book(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = testContext(t, http.MethodPost, "/bookings", bookPayload(), studentClaims())
	fx.booking.Book(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBookUndeclaredSlotReturns400(t *testing.T) {
	fx := newHandlerFixture()

	c, w := testContext(t, http.MethodPost, "/bookings", bookPayload(), studentClaims())
	fx.booking.Book(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookedSlotDisappearsFromResolution(t *testing.T) {
	fx := newHandlerFixture()
	require.NoError(t, fx.store.ReplaceDateSlots(context.Background(), "i1", "2026-09-14", []string{"10:00-11:00", "13:00-14:00"}))

	c, w := testContext(t, http.MethodPost, "/bookings", bookPayload(), studentClaims())
	fx.booking.Book(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = testContext(t, http.MethodGet, "/available-slots/i1/2026-09-14", nil, studentClaims())
	c.Params = gin.Params{{Key: "instructorId", Value: "i1"}, {Key: "date", Value: "2026-09-14"}}
	fx.booking.AvailableSlots(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":["13:00-14:00"]}`, w.Body.String())
}

func TestExportCSVAttachment(t *testing.T) {
	fx := newHandlerFixture()
	require.NoError(t, fx.store.ReplaceDateSlots(context.Background(), "i1", "2026-09-14", []string{"10:00-11:00"}))

	c, w := testContext(t, http.MethodPost, "/bookings", bookPayload(), studentClaims())
	fx.booking.Book(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = testContext(t, http.MethodGet, "/bookings/export?format=csv", nil, instructorClaims())
	fx.booking.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "2026-09-14")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	fx := newHandlerFixture()

	c, w := testContext(t, http.MethodGet, "/bookings/export?format=xlsx", nil, instructorClaims())
	fx.booking.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
