package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/settlement"
)

const dateLayout = "2006-01-02"

// ListBookings handles GET /v1/admin/bookings?status=.
func (h *AdminHandler) ListBookings(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Bookings.List(ctx, c.QueryParam("status"), today())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

type assignReq struct {
	StudentID  uint64 `json:"student_id"`
	RoomID     uint64 `json:"room_id"`
	StartDate  string `json:"start_date"`
	VacateDate string `json:"vacate_date"`
}

// AssignRoom handles POST /v1/admin/bookings/assign.  Dates are
// YYYY-MM-DD; the student's balance must cover the room price.
func (h *AdminHandler) AssignRoom(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req assignReq
	if err := c.Bind(&req); err != nil || req.StudentID == 0 || req.RoomID == 0 {
		return badRequest(c, "student_id and room_id required")
	}
	start, err1 := time.Parse(dateLayout, strings.TrimSpace(req.StartDate))
	vacate, err2 := time.Parse(dateLayout, strings.TrimSpace(req.VacateDate))
	if err1 != nil || err2 != nil {
		return badRequest(c, "start_date and vacate_date must be YYYY-MM-DD")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Svc.Assign(ctx, adminID, settlement.AssignRequest{
		StudentID:  req.StudentID,
		RoomID:     req.RoomID,
		StartDate:  start,
		VacateDate: vacate,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

type statusReq struct {
	Status string `json:"status"`
}

// SetBookingStatus handles PUT /v1/admin/bookings/:id/status.
func (h *AdminHandler) SetBookingStatus(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	status := model.BookingStatus(strings.TrimSpace(req.Status))
	if !status.Valid() {
		return badRequest(c, "status must be Pending, Confirmed, Cancelled or Completed")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Svc.SetBookingStatus(ctx, id, status)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	adminID, _ := getUserID(c)
	h.Log.Info("booking status changed",
		zap.Uint64("admin_id", adminID),
		zap.Uint64("booking_id", id),
		zap.String("status", string(status)))
	return c.JSON(http.StatusOK, res)
}
