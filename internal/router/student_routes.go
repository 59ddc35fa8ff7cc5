package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-booking/internal/handler"
	"github.com/iliyamo/hostel-booking/internal/middleware"
	"github.com/iliyamo/hostel-booking/internal/model"
)

// RegisterStudent registers student self-service endpoints under /v1.  All
// routes require a valid JWT and the STUDENT role.  cache wraps the room
// browse endpoints only; pass nil to disable it.
func RegisterStudent(e *echo.Echo, h *handler.StudentHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent),
	)

	var browse []echo.MiddlewareFunc
	if cache != nil {
		browse = append(browse, cache)
	}
	g.GET("/rooms", h.BrowseRooms, browse...)
	g.GET("/rooms/:id", h.GetRoom, browse...)

	g.POST("/bookings", h.CreateBooking)
	g.GET("/my-bookings", h.ListMyBookings)
	g.GET("/bookings/:id", h.GetBooking)
	g.POST("/bookings/:id/cancel", h.CancelBooking)
	g.POST("/bookings/:id/pay", h.PayBooking)

	g.POST("/payments/top-up", h.TopUp)
	g.GET("/my-payments", h.ListMyPayments)
	g.GET("/balance", h.Balance)
}
