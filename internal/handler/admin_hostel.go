package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-booking/internal/model"
)

type hostelReq struct {
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	TotalRooms  uint32  `json:"total_rooms"`
	Description *string `json:"description"`
}

func (r *hostelReq) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	r.Location = strings.TrimSpace(r.Location)
	if r.Name == "" || r.Location == "" {
		return "name and location required"
	}
	return ""
}

// ListHostels handles GET /v1/admin/hostels.
func (h *AdminHandler) ListHostels(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	list, err := h.Hostels.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"hostels": list})
}

// CreateHostel handles POST /v1/admin/hostels.  Names are unique.
func (h *AdminHandler) CreateHostel(c echo.Context) error {
	var req hostelReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	hostel := model.Hostel{Name: req.Name, Location: req.Location, TotalRooms: req.TotalRooms, Description: req.Description}
	if err := h.Hostels.Create(ctx, &hostel); err != nil {
		return respondError(c, h.Log, err)
	}
	created, err := h.Hostels.Get(ctx, hostel.ID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetHostel handles GET /v1/admin/hostels/:id.
func (h *AdminHandler) GetHostel(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid hostel id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	hostel, err := h.Hostels.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, hostel)
}

// UpdateHostel handles PUT /v1/admin/hostels/:id.
func (h *AdminHandler) UpdateHostel(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid hostel id")
	}
	var req hostelReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	hostel, err := h.Hostels.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	hostel.Name, hostel.Location, hostel.TotalRooms, hostel.Description = req.Name, req.Location, req.TotalRooms, req.Description
	if err := h.Hostels.Update(ctx, hostel); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, hostel)
}

// DeleteHostel handles DELETE /v1/admin/hostels/:id.  Hostels that still
// have rooms are kept (409).
func (h *AdminHandler) DeleteHostel(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid hostel id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Hostels.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
