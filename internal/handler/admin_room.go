package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-booking/internal/model"
)

type roomReq struct {
	RoomNumber string `json:"room_number"`
	RoomType   string `json:"room_type"`
	Capacity   uint32 `json:"capacity"`
	PriceCents int64  `json:"price_cents"`
}

func (r *roomReq) toRoom() (model.Room, string) {
	rm := model.Room{
		RoomNumber: strings.TrimSpace(r.RoomNumber),
		RoomType:   model.RoomType(strings.TrimSpace(r.RoomType)),
		Capacity:   r.Capacity,
		PriceCents: r.PriceCents,
	}
	switch {
	case rm.RoomNumber == "":
		return rm, "room_number required"
	case !rm.RoomType.Valid():
		return rm, "room_type must be Single, Double or Shared"
	case rm.Capacity < 1:
		return rm, "capacity must be at least 1"
	case rm.PriceCents < 0:
		return rm, "price_cents must not be negative"
	}
	return rm, ""
}

// ListRooms handles GET /v1/admin/hostels/:id/rooms.
func (h *AdminHandler) ListRooms(c echo.Context) error {
	hostelID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid hostel id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := h.Hostels.Get(ctx, hostelID); err != nil {
		return respondError(c, h.Log, err)
	}
	rooms, err := h.Rooms.ListByHostel(ctx, hostelID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms})
}

// CreateRoom handles POST /v1/admin/hostels/:id/rooms.  Room numbers are
// unique within a hostel.
func (h *AdminHandler) CreateRoom(c echo.Context) error {
	hostelID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid hostel id")
	}
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rm, msg := req.toRoom()
	if msg != "" {
		return badRequest(c, msg)
	}
	rm.HostelID = hostelID

	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := h.Hostels.Get(ctx, hostelID); err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Rooms.Create(ctx, &rm); err != nil {
		return respondError(c, h.Log, err)
	}
	view, err := h.Rooms.Get(ctx, rm.ID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// UpdateRoom handles PUT /v1/admin/rooms/:id.  The capacity cannot drop
// below the bookings currently holding the room (409).
func (h *AdminHandler) UpdateRoom(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rm, msg := req.toRoom()
	if msg != "" {
		return badRequest(c, msg)
	}
	rm.ID = id

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Rooms.Update(ctx, rm); err != nil {
		return respondError(c, h.Log, err)
	}
	view, err := h.Rooms.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// DeleteRoom handles DELETE /v1/admin/rooms/:id.
func (h *AdminHandler) DeleteRoom(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Rooms.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
